package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/internal/policy"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	removed := 0
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if raw, ok := m.data[key]; ok {
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, err
		}
	}
	n++
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

type stubSummaryLedger struct {
	records []models.AttendanceRecordDetail
	filters []models.AttendanceFilter
	err     error
	// afterRead runs once the ledger snapshot has been taken.
	afterRead func()
}

func (s *stubSummaryLedger) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, error) {
	s.filters = append(s.filters, filter)
	if s.err != nil {
		return nil, s.err
	}
	snapshot := s.records
	if filter.Limit > 0 && len(snapshot) > filter.Limit {
		snapshot = snapshot[:filter.Limit]
	}
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return snapshot, nil
}

func detailRecord(name, uid string, status models.AttendanceStatus, checkIn *time.Time) models.AttendanceRecordDetail {
	return models.AttendanceRecordDetail{
		AttendanceRecord: models.AttendanceRecord{
			ID:          "r-" + uid,
			TeacherID:   "t-" + uid,
			Date:        time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
			CheckInTime: checkIn,
			Status:      status,
		},
		TeacherName:     name,
		TeacherUniqueID: uid,
	}
}

func newSummaryFixture(records ...models.AttendanceRecordDetail) (*SummaryService, *stubSummaryLedger, *memCache) {
	ledger := &stubSummaryLedger{records: records}
	cacheRepo := newMemCache()
	engine := policy.New(policy.DefaultWindows(), wib)
	clock := policy.NewFixedClock(at(12, 0, 0))
	svc := NewSummaryService(ledger, engine, clock, NewSummaryCache(cacheRepo, nil, time.Minute, zap.NewNop(), true), zap.NewNop())
	return svc, ledger, cacheRepo
}

func TestSummaryCountsByStatus(t *testing.T) {
	checkIn := at(6, 30, 0)
	svc, ledger, _ := newSummaryFixture(
		detailRecord("Ana", "a1", models.AttendanceStatusOnTime, &checkIn),
		detailRecord("Budi", "b2", models.AttendanceStatusLate, &checkIn),
		detailRecord("Citra", "c3", models.AttendanceStatusLate, &checkIn),
		detailRecord("Dewi", "d4", models.AttendanceStatusAbsent, nil),
	)

	summary, hit, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.OnTime)
	assert.Equal(t, 2, summary.Late)
	assert.Equal(t, 1, summary.Absent)
	assert.Len(t, summary.Records, 4)
	require.Len(t, ledger.filters, 1)
	assert.Equal(t, "owner-1", ledger.filters[0].OwnerID)
}

func TestSummaryFilters(t *testing.T) {
	svc, ledger, _ := newSummaryFixture()

	_, _, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{Date: "2024-03-05", Teacher: " ana ", Status: "On Time"})
	require.NoError(t, err)
	filter := ledger.filters[0]
	require.NotNil(t, filter.Date)
	assert.Equal(t, "2024-03-05", filter.Date.Format(dateLayout))
	assert.Equal(t, "ana", filter.Teacher)
	require.NotNil(t, filter.Status)
	assert.Equal(t, models.AttendanceStatusOnTime, *filter.Status)

	_, _, err = svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{Date: "05/03/2024"})
	require.NoError(t, err)
	assert.Nil(t, ledger.filters[1].Date)

	_, _, err = svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{Status: "sick"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Len(t, ledger.filters, 2)
}

func TestSummaryCacheAndInvalidation(t *testing.T) {
	checkIn := at(6, 30, 0)
	svc, ledger, cacheRepo := newSummaryFixture(detailRecord("Ana", "a1", models.AttendanceStatusOnTime, &checkIn))

	_, hit, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.False(t, hit)

	cached, hit, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, cached.OnTime)
	assert.Len(t, ledger.filters, 1)

	_, err = cacheRepo.DeleteByPattern(context.Background(), summaryCachePattern("owner-1"))
	require.NoError(t, err)
	_, hit, err = svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, ledger.filters, 2)
}

func TestSummaryWriteDuringReadIsNotCachedOver(t *testing.T) {
	svc, ledger, _ := newSummaryFixture()
	checkIn := at(6, 30, 0)
	ledger.afterRead = func() {
		ledger.records = append(ledger.records, detailRecord("Ana", "a1", models.AttendanceStatusOnTime, &checkIn))
		svc.cache.ForgetOwner(context.Background(), "owner-1")
	}

	first, hit, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, first.Total)

	second, hit, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, second.Total)
	assert.Equal(t, 1, second.OnTime)

	third, hit, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, third.Total)
}

func TestSummaryBypassesCacheWhenGenerationUnreadable(t *testing.T) {
	ledger := &stubSummaryLedger{}
	engine := policy.New(policy.DefaultWindows(), wib)
	svc := NewSummaryService(ledger, engine, policy.NewFixedClock(at(12, 0, 0)),
		NewSummaryCache(brokenCacheRepo{}, nil, time.Minute, zap.NewNop(), true), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, hit, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Len(t, ledger.filters, 2)
}

func TestSummaryCacheIsPerOwner(t *testing.T) {
	svc, ledger, _ := newSummaryFixture()
	_, _, err := svc.Summary(context.Background(), "owner-1", dto.SummaryQuery{})
	require.NoError(t, err)
	_, hit, err := svc.Summary(context.Background(), "owner-2", dto.SummaryQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, ledger.filters, 2)
}

func TestDashboard(t *testing.T) {
	var records []models.AttendanceRecordDetail
	for i := 0; i < 12; i++ {
		records = append(records, detailRecord("Teacher", string(rune('a'+i)), models.AttendanceStatusLate, nil))
	}
	svc, ledger, _ := newSummaryFixture(records...)

	dashboard, _, err := svc.Dashboard(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", dashboard.Today.Date)
	assert.Equal(t, 12, dashboard.Today.Late)
	assert.Len(t, dashboard.Recent, 10)
	require.Len(t, ledger.filters, 2)
	require.NotNil(t, ledger.filters[0].Date)
	assert.Equal(t, 10, ledger.filters[1].Limit)
}

func TestExportCSV(t *testing.T) {
	checkIn := at(6, 30, 0)
	svc, _, _ := newSummaryFixture(detailRecord("Budi, S.Pd", "b2", models.AttendanceStatusOnTime, &checkIn))

	file, err := svc.Export(context.Background(), "owner-1", dto.SummaryQuery{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, "attendance_summary_20240305_120000.csv", file.Filename)
	assert.Equal(t,
		"Date,Teacher,Unique ID,Check In,Check Out,Status\n2024-03-05,\"Budi, S.Pd\",b2,06:30 AM,-,On Time\n",
		string(file.Content))
}

func TestExportPDFAndUnknownFormat(t *testing.T) {
	svc, _, _ := newSummaryFixture(detailRecord("Ana", "a1", models.AttendanceStatusAbsent, nil))

	file, err := svc.Export(context.Background(), "owner-1", dto.SummaryQuery{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))

	_, err = svc.Export(context.Background(), "owner-1", dto.SummaryQuery{}, "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
