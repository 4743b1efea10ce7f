package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/attendance/scan", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/attendance/scan", http.StatusConflict, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordAttendanceEvent("check_in", "OK")
	m.RecordNotification("check_in", "email", false)
	m.RecordSweep("missed_sign_in", "ok")

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.RequestsTotal)
	assert.InDelta(t, 30, snap.AverageRequestDurationMs, 0.001)
	assert.EqualValues(t, 1, snap.SummaryCacheHits)
	assert.EqualValues(t, 2, snap.SummaryCacheMisses)
	assert.InDelta(t, 1.0/3.0, snap.SummaryCacheHitRatio, 0.0001)
	assert.EqualValues(t, 1, snap.AttendanceEvents)
	assert.EqualValues(t, 1, snap.NotificationFailures)
	assert.EqualValues(t, 1, snap.SweepRuns)
	assert.Positive(t, snap.Goroutines)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordAttendanceEvent("check_out", "OUTSIDE_CHECKOUT_WINDOW")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `teacher_attendance_events_total{action="check_out",outcome="OUTSIDE_CHECKOUT_WINDOW"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordAttendanceEvent("check_in", "OK")
	m.RecordCacheOperation(true, time.Millisecond)
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
