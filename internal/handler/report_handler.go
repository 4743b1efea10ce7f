package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/middleware"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/response"
)

type reportService interface {
	Summary(ctx context.Context, ownerID string, q dto.SummaryQuery) (*dto.AttendanceSummary, bool, error)
	Dashboard(ctx context.Context, ownerID string) (*dto.AttendanceDashboard, bool, error)
	Export(ctx context.Context, ownerID string, q dto.SummaryQuery, format string) (*dto.ExportFile, error)
}

// ReportHandler exposes the attendance summary endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Summary godoc
// @Summary Attendance summary
// @Description Counts per status and the filtered record list of the caller's teachers
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param teacher query string false "Teacher name or unique id"
// @Param status query string false "ON_TIME, LATE or ABSENT"
// @Success 200 {object} response.Envelope
// @Router /attendance/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var q dto.SummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid summary filters"))
		return
	}
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), claims.UserID, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, cacheMeta(c, cacheHit))
}

// Dashboard godoc
// @Summary Attendance dashboard
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /attendance/dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	dashboard, cacheHit, err := h.service.Dashboard(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil, cacheMeta(c, cacheHit))
}

// Export godoc
// @Summary Export attendance summary
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param teacher query string false "Teacher name or unique id"
// @Param status query string false "ON_TIME, LATE or ABSENT"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /attendance/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var q dto.SummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid summary filters"))
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))
	file, err := h.service.Export(c.Request.Context(), claims.UserID, q, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

func cacheMeta(c *gin.Context, hit bool) map[string]interface{} {
	middleware.MarkCache(c, hit)
	return middleware.Meta(c)
}
