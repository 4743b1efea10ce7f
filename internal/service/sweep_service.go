package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/internal/policy"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
)

type sweepLedger interface {
	ListTeachersWithoutRecord(ctx context.Context, day time.Time, ownerID string) ([]models.Teacher, error)
	ListOpenRecords(ctx context.Context, day time.Time, ownerID string) ([]models.AttendanceRecordDetail, error)
}

// SweepService notifies teachers who missed an event today. It only reads the ledger.
type SweepService struct {
	ledger        sweepLedger
	engine        *policy.Engine
	clock         policy.Clock
	notifications notificationDispatcher
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewSweepService constructs a SweepService.
func NewSweepService(ledger sweepLedger, engine *policy.Engine, clock policy.Clock, notifications notificationDispatcher, metrics *MetricsService, logger *zap.Logger) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = policy.SystemClock{Location: engine.Location()}
	}
	return &SweepService{ledger: ledger, engine: engine, clock: clock, notifications: notifications, metrics: metrics, logger: logger}
}

// MissedSignIn notifies every active teacher without a record for today. An
// empty ownerID sweeps all owners.
func (s *SweepService) MissedSignIn(ctx context.Context, ownerID string) (*dto.SweepResult, error) {
	now := s.clock.Now()
	day := s.engine.Day(now)
	result := &dto.SweepResult{Kind: dto.SweepMissedSignIn, Date: day.Format(dateLayout)}

	teachers, err := s.ledger.ListTeachersWithoutRecord(ctx, day, ownerID)
	if err != nil {
		s.metrics.RecordSweep(string(result.Kind), "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers without attendance")
	}

	for i := range teachers {
		teacher := &teachers[i]
		s.tally(result, s.notifications.Dispatch(ctx, notify.Message{
			Kind:       notify.KindMissedSignIn,
			Recipient:  recipientOf(teacher),
			OccurredAt: now,
			Fields: notify.Fields{
				UniqueID: teacher.UniqueID,
				Date:     result.Date,
			},
		}))
	}
	s.finish(result)
	return result, nil
}

// MissedSignOut notifies teachers who checked in today but not out. It only runs
// once the check-out window has closed.
func (s *SweepService) MissedSignOut(ctx context.Context, ownerID string) (*dto.SweepResult, error) {
	now := s.clock.Now()
	day := s.engine.Day(now)
	result := &dto.SweepResult{Kind: dto.SweepMissedSignOut, Date: day.Format(dateLayout)}

	if !s.engine.SignOutWindowClosed(now) {
		result.Skipped = true
		result.Reason = "check-out window is still open"
		s.metrics.RecordSweep(string(result.Kind), "skipped")
		s.logger.Info("missed sign-out sweep skipped", zap.String("date", result.Date), zap.String("reason", result.Reason))
		return result, nil
	}

	records, err := s.ledger.ListOpenRecords(ctx, day, ownerID)
	if err != nil {
		s.metrics.RecordSweep(string(result.Kind), "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open attendance records")
	}

	for _, record := range records {
		teacher := &models.Teacher{
			ID:       record.TeacherID,
			UniqueID: record.TeacherUniqueID,
			Name:     record.TeacherName,
			Email:    record.TeacherEmail,
			Phone:    record.TeacherPhone,
		}
		fields := notify.Fields{UniqueID: teacher.UniqueID, Date: result.Date, Status: record.Status.Label()}
		if record.CheckInTime != nil {
			fields.Time = s.engine.Clock12(*record.CheckInTime)
		}
		s.tally(result, s.notifications.Dispatch(ctx, notify.Message{
			Kind:       notify.KindMissedSignOut,
			Recipient:  recipientOf(teacher),
			OccurredAt: now,
			Fields:     fields,
		}))
	}
	s.finish(result)
	return result, nil
}

func (s *SweepService) tally(result *dto.SweepResult, outcome *notify.Outcome) {
	result.Evaluated++
	switch {
	case !outcome.Attempted():
		result.SkippedNoContact++
	case outcome.Succeeded():
		result.Notified++
	default:
		result.Failed++
	}
}

func (s *SweepService) finish(result *dto.SweepResult) {
	s.metrics.RecordSweep(string(result.Kind), "completed")
	s.logger.Info("sweep completed",
		zap.String("kind", string(result.Kind)),
		zap.String("date", result.Date),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("notified", result.Notified),
		zap.Int("failed", result.Failed),
		zap.Int("skipped_no_contact", result.SkippedNoContact))
}
