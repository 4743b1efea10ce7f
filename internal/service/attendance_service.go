package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/internal/badge"
	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/internal/policy"
	"github.com/noah-isme/teacher-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
)

type stationTeacherRepository interface {
	FindActiveByUniqueID(ctx context.Context, uniqueID string) (*models.Teacher, error)
}

type attendanceLedger interface {
	Mutate(ctx context.Context, teacherID string, day time.Time, mutate repository.LedgerMutation) (*models.AttendanceRecord, error)
	FindByTeacherAndDate(ctx context.Context, teacherID string, day time.Time) (*models.AttendanceRecord, error)
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, msg notify.Message) *notify.Outcome
}

// AttendanceConfig tunes the event processor.
type AttendanceConfig struct {
	// AllowTimeOverride honours the client supplied event time. Never enabled in production.
	AllowTimeOverride bool
}

// AttendanceService processes check-in and check-out events from the station.
type AttendanceService struct {
	teachers      stationTeacherRepository
	ledger        attendanceLedger
	engine        *policy.Engine
	clock         policy.Clock
	notifications notificationDispatcher
	cache         *SummaryCache
	metrics       *MetricsService
	logger        *zap.Logger
	config        AttendanceConfig
}

// NewAttendanceService constructs the event processor.
func NewAttendanceService(
	teachers stationTeacherRepository,
	ledger attendanceLedger,
	engine *policy.Engine,
	clock policy.Clock,
	notifications notificationDispatcher,
	cache *SummaryCache,
	metrics *MetricsService,
	logger *zap.Logger,
	config AttendanceConfig,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = policy.SystemClock{Location: engine.Location()}
	}
	return &AttendanceService{
		teachers:      teachers,
		ledger:        ledger,
		engine:        engine,
		clock:         clock,
		notifications: notifications,
		cache:         cache,
		metrics:       metrics,
		logger:        logger,
		config:        config,
	}
}

// ProcessScan handles a scanned badge payload.
func (s *AttendanceService) ProcessScan(ctx context.Context, req dto.ScanRequest) (*dto.AttendanceResult, error) {
	uniqueID, err := badge.ParsePayload(req.QRData)
	if err != nil {
		s.metrics.RecordAttendanceEvent(string(req.Action), appErrors.ErrInvalidScanPayload.Code)
		return nil, err
	}
	return s.Process(ctx, req.Action, dto.AttendanceEvent{UniqueID: uniqueID, At: req.At})
}

// ProcessManual handles an event typed in by unique id when scanning fails.
func (s *AttendanceService) ProcessManual(ctx context.Context, req dto.ManualEntryRequest) (*dto.AttendanceResult, error) {
	return s.Process(ctx, req.Action, dto.AttendanceEvent{UniqueID: req.TeacherUniqueID, At: req.At})
}

// Process routes an event to CheckIn or CheckOut.
func (s *AttendanceService) Process(ctx context.Context, action models.AttendanceAction, evt dto.AttendanceEvent) (*dto.AttendanceResult, error) {
	switch action {
	case models.ActionCheckIn:
		return s.CheckIn(ctx, evt)
	case models.ActionCheckOut:
		return s.CheckOut(ctx, evt)
	default:
		s.metrics.RecordAttendanceEvent(string(action), appErrors.ErrInvalidAction.Code)
		return nil, appErrors.ErrInvalidAction
	}
}

// CheckIn records the first arrival of the day. A repeated check-in returns the
// existing record together with ErrAlreadyCheckedIn.
func (s *AttendanceService) CheckIn(ctx context.Context, evt dto.AttendanceEvent) (*dto.AttendanceResult, error) {
	now := s.eventTime(evt.At)
	teacher, err := s.resolveTeacher(ctx, evt.UniqueID)
	if err != nil {
		s.recordOutcome(models.ActionCheckIn, err)
		return nil, err
	}

	day := s.engine.Day(now)
	at := now.UTC()
	var existing *models.AttendanceRecord
	saved, err := s.ledger.Mutate(ctx, teacher.ID, day, func(current *models.AttendanceRecord) (*models.AttendanceRecord, error) {
		if current.CheckedIn() {
			existing = current
			return nil, appErrors.ErrAlreadyCheckedIn
		}
		next := &models.AttendanceRecord{TeacherID: teacher.ID, Date: day, CheckInTime: &at, Status: s.engine.Classify(now)}
		if current != nil {
			next.ID = current.ID
		}
		return next, nil
	})
	if errors.Is(err, repository.ErrDuplicateEntry) {
		existing, err = s.ledger.FindByTeacherAndDate(ctx, teacher.ID, day)
		if err != nil {
			err = s.persistenceError(err, "reload attendance after concurrent check-in")
		} else {
			err = appErrors.ErrAlreadyCheckedIn
		}
	}
	if err != nil {
		s.recordOutcome(models.ActionCheckIn, err)
		if appErrors.Is(err, appErrors.ErrAlreadyCheckedIn) && existing != nil {
			msg := s.engine.AlreadyCheckedInMessage(*existing.CheckInTime)
			return &dto.AttendanceResult{
				Action:  models.ActionCheckIn,
				Message: msg,
				Status:  existing.Status,
				Record:  detail(existing, teacher),
			}, appErrors.Clone(appErrors.ErrAlreadyCheckedIn, msg)
		}
		return nil, s.persistenceError(err, "record check-in")
	}

	s.recordOutcome(models.ActionCheckIn, nil)
	s.invalidateSummaries(ctx, teacher.OwnerID)
	s.logger.Info("teacher checked in",
		zap.String("teacher_id", teacher.ID),
		zap.String("unique_id", teacher.UniqueID),
		zap.String("status", string(saved.Status)),
		zap.Time("at", at))

	return &dto.AttendanceResult{
		Success:      true,
		Action:       models.ActionCheckIn,
		Message:      policy.CheckInMessage(saved.Status, teacher.Name),
		Status:       saved.Status,
		Record:       detail(saved, teacher),
		Notification: s.notify(ctx, notify.KindCheckIn, teacher, now, saved.Status),
	}, nil
}

// CheckOut records departure. It requires a check-in for the same day and an
// instant inside the check-out window.
func (s *AttendanceService) CheckOut(ctx context.Context, evt dto.AttendanceEvent) (*dto.AttendanceResult, error) {
	now := s.eventTime(evt.At)
	teacher, err := s.resolveTeacher(ctx, evt.UniqueID)
	if err != nil {
		s.recordOutcome(models.ActionCheckOut, err)
		return nil, err
	}

	day := s.engine.Day(now)
	at := now.UTC()
	var existing *models.AttendanceRecord
	saved, err := s.ledger.Mutate(ctx, teacher.ID, day, func(current *models.AttendanceRecord) (*models.AttendanceRecord, error) {
		switch {
		case current == nil:
			return nil, appErrors.ErrNoCheckInRecord
		case !current.CheckedIn():
			return nil, appErrors.ErrMustCheckInFirst
		case current.CheckedOut():
			existing = current
			return nil, appErrors.ErrAlreadyCheckedOut
		case !s.engine.CanCheckOut(now):
			return nil, appErrors.Clone(appErrors.ErrOutsideCheckoutWindow, s.engine.CheckOutWindowMessage())
		}
		next := *current
		next.CheckOutTime = &at
		return &next, nil
	})
	if err != nil {
		s.recordOutcome(models.ActionCheckOut, err)
		if appErrors.Is(err, appErrors.ErrAlreadyCheckedOut) && existing != nil {
			msg := s.engine.AlreadyCheckedOutMessage(*existing.CheckOutTime)
			return &dto.AttendanceResult{
				Action:  models.ActionCheckOut,
				Message: msg,
				Status:  existing.Status,
				Record:  detail(existing, teacher),
			}, appErrors.Clone(appErrors.ErrAlreadyCheckedOut, msg)
		}
		return nil, s.persistenceError(err, "record check-out")
	}

	s.recordOutcome(models.ActionCheckOut, nil)
	s.invalidateSummaries(ctx, teacher.OwnerID)
	s.logger.Info("teacher checked out",
		zap.String("teacher_id", teacher.ID),
		zap.String("unique_id", teacher.UniqueID),
		zap.Time("at", at))

	return &dto.AttendanceResult{
		Success:      true,
		Action:       models.ActionCheckOut,
		Message:      policy.CheckOutMessage(teacher.Name),
		Status:       saved.Status,
		Record:       detail(saved, teacher),
		Notification: s.notify(ctx, notify.KindCheckOut, teacher, now, saved.Status),
	}, nil
}

// LookupTeacher returns the public identity of an active teacher.
func (s *AttendanceService) LookupTeacher(ctx context.Context, uniqueID string) (*dto.TeacherLookup, error) {
	teacher, err := s.resolveTeacher(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	return &dto.TeacherLookup{UniqueID: teacher.UniqueID, Name: teacher.Name, Department: teacher.Department}, nil
}

// Today returns the teacher's ledger entry for the current day, if any.
func (s *AttendanceService) Today(ctx context.Context, uniqueID string) (*dto.TeacherToday, error) {
	teacher, err := s.resolveTeacher(ctx, uniqueID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	day := s.engine.Day(now)
	result := &dto.TeacherToday{
		Teacher: dto.TeacherLookup{UniqueID: teacher.UniqueID, Name: teacher.Name, Department: teacher.Department},
		Date:    day.Format(dateLayout),
	}
	record, err := s.ledger.FindByTeacherAndDate(ctx, teacher.ID, day)
	switch {
	case err == nil:
		result.Record = record
		result.CanCheckOut = record.CheckedIn() && !record.CheckedOut() && s.engine.CanCheckOut(now)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, s.persistenceError(err, "load today's attendance")
	}
	return result, nil
}

func (s *AttendanceService) eventTime(override *time.Time) time.Time {
	if override != nil && !override.IsZero() && s.config.AllowTimeOverride {
		return *override
	}
	return s.clock.Now()
}

func (s *AttendanceService) resolveTeacher(ctx context.Context, uniqueID string) (*models.Teacher, error) {
	uniqueID = strings.TrimSpace(uniqueID)
	if uniqueID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher unique id is required")
	}
	teacher, err := s.teachers.FindActiveByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Teacher not found")
		}
		return nil, s.persistenceError(err, "load teacher")
	}
	return teacher, nil
}

// persistenceError passes typed errors through and wraps storage failures.
func (s *AttendanceService) persistenceError(err error, op string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("attendance persistence failed", zap.String("op", op), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
}

func (s *AttendanceService) recordOutcome(action models.AttendanceAction, err error) {
	outcome := "OK"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.RecordAttendanceEvent(string(action), outcome)
}

func (s *AttendanceService) invalidateSummaries(ctx context.Context, ownerID string) {
	s.cache.ForgetOwner(ctx, ownerID)
}

func (s *AttendanceService) notify(ctx context.Context, kind notify.Kind, teacher *models.Teacher, at time.Time, status models.AttendanceStatus) *notify.Outcome {
	if s.notifications == nil {
		return nil
	}
	return s.notifications.Dispatch(ctx, notify.Message{
		Kind:       kind,
		Recipient:  recipientOf(teacher),
		OccurredAt: at,
		Fields: notify.Fields{
			UniqueID: teacher.UniqueID,
			Status:   status.Label(),
			Time:     s.engine.Clock12(at),
			Date:     at.In(s.engine.Location()).Format(dateLayout),
		},
	})
}

func recipientOf(teacher *models.Teacher) notify.Recipient {
	r := notify.Recipient{Name: teacher.Name}
	if teacher.Email != nil {
		r.Email = strings.TrimSpace(*teacher.Email)
	}
	if teacher.Phone != nil {
		r.Phone = strings.TrimSpace(*teacher.Phone)
	}
	return r
}

func detail(record *models.AttendanceRecord, teacher *models.Teacher) *models.AttendanceRecordDetail {
	return &models.AttendanceRecordDetail{
		AttendanceRecord: *record,
		TeacherName:      teacher.Name,
		TeacherUniqueID:  teacher.UniqueID,
		TeacherEmail:     teacher.Email,
		TeacherPhone:     teacher.Phone,
	}
}
