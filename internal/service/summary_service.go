package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/internal/policy"
	"github.com/noah-isme/teacher-attendance-api/pkg/cache"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/export"
)

const (
	dateLayout          = "2006-01-02"
	dashboardRecentSize = 10
)

type summaryLedger interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, error)
}

// SummaryService answers read-only reporting queries over one owner's ledger.
type SummaryService struct {
	ledger summaryLedger
	engine *policy.Engine
	clock  policy.Clock
	cache  *SummaryCache
	logger *zap.Logger
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(ledger summaryLedger, engine *policy.Engine, clock policy.Clock, summaries *SummaryCache, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = policy.SystemClock{Location: engine.Location()}
	}
	return &SummaryService{ledger: ledger, engine: engine, clock: clock, cache: summaries, logger: logger}
}

type summaryFilter struct {
	date    *time.Time
	teacher string
	status  *models.AttendanceStatus
}

func (f summaryFilter) cacheKey(ownerID string, generation int64) string {
	date := "any"
	if f.date != nil {
		date = f.date.Format(dateLayout)
	}
	status := "any"
	if f.status != nil {
		status = string(*f.status)
	}
	return cache.Key("summary", ownerID, "g"+strconv.FormatInt(generation, 10), "date="+date, "status="+status, "teacher="+strings.ToLower(f.teacher))
}


// Summary counts and lists the owner's records matching q. The boolean reports a cache hit.
func (s *SummaryService) Summary(ctx context.Context, ownerID string, q dto.SummaryQuery) (*dto.AttendanceSummary, bool, error) {
	filter, err := s.parseQuery(q)
	if err != nil {
		return nil, false, err
	}
	return s.summarize(ctx, ownerID, filter)
}

// Dashboard returns today's summary and the most recent records.
func (s *SummaryService) Dashboard(ctx context.Context, ownerID string) (*dto.AttendanceDashboard, bool, error) {
	today := s.engine.Day(s.clock.Now())
	summary, hit, err := s.summarize(ctx, ownerID, summaryFilter{date: &today})
	if err != nil {
		return nil, false, err
	}
	recent, err := s.ledger.List(ctx, models.AttendanceFilter{OwnerID: ownerID, Limit: dashboardRecentSize})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent attendance")
	}
	return &dto.AttendanceDashboard{Today: *summary, Recent: recent}, hit, nil
}

// Export renders the summary for q as CSV or PDF.
func (s *SummaryService) Export(ctx context.Context, ownerID string, q dto.SummaryQuery, format string) (*dto.ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	filter, err := s.parseQuery(q)
	if err != nil {
		return nil, err
	}
	summary, _, err := s.summarize(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	generated := s.clock.Now().In(s.engine.Location())
	content, err := export.Render(f, s.dataset(summary, filter, generated))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("attendance_summary_%s.%s", generated.Format("20060102_150405"), f),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

// parseQuery ignores an unparsable date and rejects an unknown status.
func (s *SummaryService) parseQuery(q dto.SummaryQuery) (summaryFilter, error) {
	var filter summaryFilter
	if raw := strings.TrimSpace(q.Date); raw != "" {
		if d, err := time.Parse(dateLayout, raw); err == nil {
			filter.date = &d
		} else {
			s.logger.Debug("ignoring invalid summary date", zap.String("date", raw))
		}
	}
	filter.teacher = strings.TrimSpace(q.Teacher)
	if raw := strings.TrimSpace(q.Status); raw != "" {
		status, ok := models.ParseAttendanceStatus(raw)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.status = &status
	}
	return filter, nil
}

func (s *SummaryService) summarize(ctx context.Context, ownerID string, filter summaryFilter) (*dto.AttendanceSummary, bool, error) {
	generation, cacheable := s.cache.Generation(ctx, ownerID)
	key := filter.cacheKey(ownerID, generation)
	var cached dto.AttendanceSummary
	if cacheable && s.cache.Lookup(ctx, key, &cached) {
		return &cached, true, nil
	}

	records, err := s.ledger.List(ctx, models.AttendanceFilter{
		OwnerID: ownerID,
		Date:    filter.date,
		Teacher: filter.teacher,
		Status:  filter.status,
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance summary")
	}

	summary := &dto.AttendanceSummary{Records: records}
	if summary.Records == nil {
		summary.Records = []models.AttendanceRecordDetail{}
	}
	if filter.date != nil {
		summary.Date = filter.date.Format(dateLayout)
	}
	for _, record := range records {
		summary.Add(record.Status)
	}

	if cacheable {
		s.cache.Store(ctx, key, summary)
	}
	return summary, false, nil
}

func (s *SummaryService) dataset(summary *dto.AttendanceSummary, filter summaryFilter, generated time.Time) export.Dataset {
	notes := []string{"Generated: " + generated.Format("2006-01-02 15:04")}
	var scope []string
	if filter.date != nil {
		scope = append(scope, "date "+filter.date.Format(dateLayout))
	}
	if filter.teacher != "" {
		scope = append(scope, "teacher "+filter.teacher)
	}
	if filter.status != nil {
		scope = append(scope, "status "+filter.status.Label())
	}
	if len(scope) > 0 {
		notes = append(notes, "Filters: "+strings.Join(scope, ", "))
	}
	notes = append(notes, fmt.Sprintf("Total: %d  On Time: %d  Late: %d  Absent: %d",
		summary.Total, summary.OnTime, summary.Late, summary.Absent))

	rows := make([]map[string]string, 0, len(summary.Records))
	for _, record := range summary.Records {
		rows = append(rows, map[string]string{
			"Date":      record.Date.Format(dateLayout),
			"Teacher":   record.TeacherName,
			"Unique ID": record.TeacherUniqueID,
			"Check In":  s.clockOrDash(record.CheckInTime),
			"Check Out": s.clockOrDash(record.CheckOutTime),
			"Status":    record.Status.Label(),
		})
	}
	return export.Dataset{
		Title:   "Attendance Summary",
		Notes:   notes,
		Headers: []string{"Date", "Teacher", "Unique ID", "Check In", "Check Out", "Status"},
		Rows:    rows,
	}
}

func (s *SummaryService) clockOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return s.engine.Clock12(*t)
}
