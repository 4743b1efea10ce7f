package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
)

type fakeReports struct {
	hit        bool
	err        error
	lastOwner  string
	lastQuery  dto.SummaryQuery
	lastFormat string
}

func (f *fakeReports) Summary(_ context.Context, ownerID string, q dto.SummaryQuery) (*dto.AttendanceSummary, bool, error) {
	f.lastOwner, f.lastQuery = ownerID, q
	if f.err != nil {
		return nil, false, f.err
	}
	return &dto.AttendanceSummary{AttendanceCounts: models.AttendanceCounts{Total: 2, OnTime: 1, Late: 1}}, f.hit, nil
}

func (f *fakeReports) Dashboard(_ context.Context, ownerID string) (*dto.AttendanceDashboard, bool, error) {
	f.lastOwner = ownerID
	return &dto.AttendanceDashboard{Today: dto.AttendanceSummary{Date: "2024-03-05"}}, f.hit, f.err
}

func (f *fakeReports) Export(_ context.Context, ownerID string, q dto.SummaryQuery, format string) (*dto.ExportFile, error) {
	f.lastOwner, f.lastQuery, f.lastFormat = ownerID, q, format
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ExportFile{Filename: "attendance_summary_20240305_120000.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("Date\n")}, nil
}

func TestReportSummary(t *testing.T) {
	svc := &fakeReports{hit: true}
	handler := NewReportHandler(svc)

	c, rec := newContext(http.MethodGet, "/attendance/summary?date=2024-03-05&teacher=ana&status=LATE", "", adminClaims())
	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", svc.lastOwner)
	assert.Equal(t, dto.SummaryQuery{Date: "2024-03-05", Teacher: "ana", Status: "LATE"}, svc.lastQuery)
	envelope := decode(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, string(envelope.Data), `"late_count":1`)
}

func TestReportSummaryValidationError(t *testing.T) {
	handler := NewReportHandler(&fakeReports{err: appErrors.Clone(appErrors.ErrValidation, "unknown status")})
	c, rec := newContext(http.MethodGet, "/attendance/summary?status=sick", "", adminClaims())
	handler.Summary(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportDashboardRequiresAuth(t *testing.T) {
	handler := NewReportHandler(&fakeReports{})
	c, rec := newContext(http.MethodGet, "/attendance/dashboard", "", nil)
	handler.Dashboard(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodGet, "/attendance/dashboard", "", adminClaims())
	handler.Dashboard(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec).Meta["cache_hit"])
}

func TestReportExport(t *testing.T) {
	svc := &fakeReports{}
	handler := NewReportHandler(svc)

	c, rec := newContext(http.MethodGet, "/attendance/export?status=late", "", adminClaims())
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", svc.lastFormat)
	assert.Equal(t, "late", svc.lastQuery.Status)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="attendance_summary_20240305_120000.csv"`, rec.Header().Get("Content-Disposition"))

	c, _ = newContext(http.MethodGet, "/attendance/export?format=PDF", "", adminClaims())
	handler.Export(c)
	assert.Equal(t, "pdf", svc.lastFormat)
}
