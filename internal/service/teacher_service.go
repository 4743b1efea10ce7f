package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/internal/badge"
	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
	"github.com/noah-isme/teacher-attendance-api/pkg/storage"
)

const (
	uniqueIDAttempts   = 5
	teacherHistorySize = 30
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindOwned(ctx context.Context, ownerID, id string) (*models.Teacher, error)
	ExistsByUniqueID(ctx context.Context, uniqueID string) (bool, error)
	ExistsByName(ctx context.Context, ownerID, name, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) (int64, error)
}

type badgeIssuer interface {
	Issue(uniqueID string) (*badge.Badge, error)
	Load(uniqueID string) (*badge.Badge, error)
	Remove(uniqueID string) error
}

type badgeLinkSigner interface {
	Generate(subject, relPath string) (string, time.Time, error)
	Parse(token string) (*storage.SignedToken, error)
}

// TeacherServiceConfig holds the registry settings.
type TeacherServiceConfig struct {
	// BadgeURLBase is the absolute prefix of the public badge download route.
	BadgeURLBase string
}

// TeacherService orchestrates teacher registry operations.
type TeacherService struct {
	repo          teacherRepository
	history       summaryLedger
	badges        badgeIssuer
	signer        badgeLinkSigner
	notifications notificationDispatcher
	cache         *SummaryCache
	validator     *validator.Validate
	logger        *zap.Logger
	config        TeacherServiceConfig
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(
	repo teacherRepository,
	history summaryLedger,
	badges badgeIssuer,
	signer badgeLinkSigner,
	notifications notificationDispatcher,
	summaries *SummaryCache,
	validate *validator.Validate,
	logger *zap.Logger,
	config TeacherServiceConfig,
) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.BadgeURLBase = strings.TrimRight(config.BadgeURLBase, "/")
	return &TeacherService{
		repo:          repo,
		history:       history,
		badges:        badges,
		signer:        signer,
		notifications: notifications,
		cache:         summaries,
		validator:     validate,
		logger:        logger,
		config:        config,
	}
}

// List returns the owner's teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pagination := &models.Pagination{Page: page, PageSize: models.ClampPageSize(filter.PageSize), TotalCount: total}
	return teachers, pagination, nil
}

// Get returns a teacher with the latest attendance records.
func (s *TeacherService) Get(ctx context.Context, ownerID, id string) (*dto.TeacherDetail, error) {
	teacher, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	records, err := s.history.List(ctx, models.AttendanceFilter{OwnerID: ownerID, TeacherID: id, Limit: teacherHistorySize})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	if records == nil {
		records = []models.AttendanceRecordDetail{}
	}
	return &dto.TeacherDetail{Teacher: *teacher, Records: records}, nil
}

// Register creates a teacher, issues the QR badge and sends the welcome email.
// The email is best-effort; its outcome is attached to the result.
func (s *TeacherService) Register(ctx context.Context, ownerID string, req dto.CreateTeacherRequest) (*dto.TeacherRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, ownerID, name, ""); err != nil {
		return nil, err
	}

	uniqueID, err := s.newUniqueID(ctx)
	if err != nil {
		return nil, err
	}
	issued, err := s.badges.Issue(uniqueID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate QR code")
	}

	teacher := &models.Teacher{
		UniqueID:   uniqueID,
		Name:       name,
		Email:      normalizeOptional(req.Email),
		Phone:      normalizeOptional(req.Phone),
		Department: normalizeOptional(req.Department),
		OwnerID:    ownerID,
		Active:     true,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if rmErr := s.badges.Remove(uniqueID); rmErr != nil {
			s.logger.Warn("failed to remove orphaned QR code", zap.String("unique_id", uniqueID), zap.Error(rmErr))
		}
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "A teacher with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	s.logger.Info("teacher registered",
		zap.String("teacher_id", teacher.ID),
		zap.String("unique_id", teacher.UniqueID),
		zap.String("owner_id", ownerID))

	registration := &dto.TeacherRegistration{Teacher: *teacher, Badge: s.describeBadge(teacher, issued)}
	if s.notifications != nil {
		registration.Notification = s.notifications.Dispatch(ctx, notify.Message{
			Kind:       notify.KindWelcome,
			Recipient:  notify.Recipient{Name: teacher.Name, Email: recipientOf(teacher).Email},
			OccurredAt: teacher.CreatedAt,
			Fields:     notify.Fields{UniqueID: teacher.UniqueID},
			Attachments: []notify.Attachment{{
				Filename:    issued.FileName,
				ContentType: "image/png",
				Data:        issued.PNG,
				Inline:      true,
			}},
		})
	}
	return registration, nil
}

// Update modifies an existing teacher. The unique id is immutable.
func (s *TeacherService) Update(ctx context.Context, ownerID, id string, req dto.UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, ownerID, name, id); err != nil {
		return nil, err
	}

	teacher.Name = name
	teacher.Email = normalizeOptional(req.Email)
	teacher.Phone = normalizeOptional(req.Phone)
	teacher.Department = normalizeOptional(req.Department)
	if req.Active != nil {
		teacher.Active = *req.Active
	}

	if err := s.repo.Update(ctx, teacher); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "A teacher with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	s.cache.ForgetOwner(ctx, ownerID)
	return teacher, nil
}

// Deactivate marks a teacher inactive. Ledger rows are kept and the station
// rejects the teacher's badge from now on.
func (s *TeacherService) Deactivate(ctx context.Context, ownerID, id string) error {
	if _, err := s.findOwned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}
	return nil
}

// Purge hard-deletes a teacher with all ledger rows and the stored QR image.
// It returns the number of attendance records removed.
func (s *TeacherService) Purge(ctx context.Context, ownerID, id string) (int64, error) {
	teacher, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return 0, err
	}
	removed, err := s.repo.Purge(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge teacher")
	}
	if err := s.badges.Remove(teacher.UniqueID); err != nil {
		s.logger.Warn("failed to remove QR code", zap.String("unique_id", teacher.UniqueID), zap.Error(err))
	}
	s.cache.ForgetOwner(ctx, ownerID)
	s.logger.Info("teacher purged", zap.String("teacher_id", id), zap.Int64("records_removed", removed))
	return removed, nil
}

// Badge re-renders the teacher's QR code and issues a fresh download link.
func (s *TeacherService) Badge(ctx context.Context, ownerID, id string) (*dto.TeacherBadge, error) {
	teacher, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	issued, err := s.badges.Issue(teacher.UniqueID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate QR code")
	}
	out := s.describeBadge(teacher, issued)
	return &out, nil
}

// ResolveBadge returns the PNG for a signed download token.
func (s *TeacherService) ResolveBadge(ctx context.Context, token string) (*dto.BadgeFile, error) {
	parsed, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link not found")
	}
	exists, err := s.repo.ExistsByUniqueID(ctx, parsed.Subject)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve badge")
	}
	if !exists || parsed.Path != badge.FileName(parsed.Subject) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link not found")
	}
	loaded, err := s.badges.Load(parsed.Subject)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load QR code")
	}
	return &dto.BadgeFile{Filename: loaded.FileName, Content: loaded.PNG}, nil
}

func (s *TeacherService) describeBadge(teacher *models.Teacher, issued *badge.Badge) dto.TeacherBadge {
	out := dto.TeacherBadge{UniqueID: teacher.UniqueID, Payload: issued.Payload, QRCode: issued.DataURL}
	if s.signer == nil {
		return out
	}
	token, expiresAt, err := s.signer.Generate(teacher.UniqueID, issued.FileName)
	if err != nil {
		s.logger.Warn("failed to sign badge link", zap.String("unique_id", teacher.UniqueID), zap.Error(err))
		return out
	}
	out.DownloadURL = s.config.BadgeURLBase + "/" + token
	out.ExpiresAt = expiresAt
	return out
}

func (s *TeacherService) newUniqueID(ctx context.Context) (string, error) {
	for i := 0; i < uniqueIDAttempts; i++ {
		candidate := badge.NewUniqueID()
		exists, err := s.repo.ExistsByUniqueID(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check unique id")
		}
		if !exists {
			return candidate, nil
		}
		s.logger.Warn("unique id collision", zap.String("unique_id", candidate))
	}
	return "", appErrors.Clone(appErrors.ErrInternal, "could not allocate a unique teacher id")
}

func (s *TeacherService) ensureUniqueName(ctx context.Context, ownerID, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, ownerID, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "A teacher with this name already exists")
	}
	return nil
}

func (s *TeacherService) findOwned(ctx context.Context, ownerID, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindOwned(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
