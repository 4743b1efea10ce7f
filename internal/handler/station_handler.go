package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/response"
)

type stationService interface {
	ProcessScan(ctx context.Context, req dto.ScanRequest) (*dto.AttendanceResult, error)
	ProcessManual(ctx context.Context, req dto.ManualEntryRequest) (*dto.AttendanceResult, error)
	LookupTeacher(ctx context.Context, uniqueID string) (*dto.TeacherLookup, error)
	Today(ctx context.Context, uniqueID string) (*dto.TeacherToday, error)
}

// StationHandler serves the public front-of-house attendance station.
type StationHandler struct {
	service stationService
}

// NewStationHandler constructs the handler.
func NewStationHandler(svc stationService) *StationHandler {
	return &StationHandler{service: svc}
}

// Scan godoc
// @Summary Process a scanned QR badge
// @Description Records a check-in or check-out. Repeated events return 409 with the existing record in data.
// @Tags Station
// @Accept json
// @Produce json
// @Param payload body dto.ScanRequest true "Scan payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *StationHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan payload"))
		return
	}
	result, err := h.service.ProcessScan(c.Request.Context(), req)
	writeEvent(c, result, err)
}

// Manual godoc
// @Summary Record attendance by unique id
// @Tags Station
// @Accept json
// @Produce json
// @Param payload body dto.ManualEntryRequest true "Manual entry payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/manual [post]
func (h *StationHandler) Manual(c *gin.Context) {
	var req dto.ManualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid manual entry payload"))
		return
	}
	result, err := h.service.ProcessManual(c.Request.Context(), req)
	writeEvent(c, result, err)
}

// Lookup godoc
// @Summary Look up an active teacher
// @Tags Station
// @Produce json
// @Param uniqueId path string true "Teacher unique id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/teachers/{uniqueId} [get]
func (h *StationHandler) Lookup(c *gin.Context) {
	teacher, err := h.service.LookupTeacher(c.Request.Context(), c.Param("uniqueId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Today godoc
// @Summary Today's record for a teacher
// @Tags Station
// @Produce json
// @Param uniqueId path string true "Teacher unique id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/teachers/{uniqueId}/today [get]
func (h *StationHandler) Today(c *gin.Context) {
	today, err := h.service.Today(c.Request.Context(), c.Param("uniqueId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, today, nil)
}

// writeEvent renders a station outcome. ALREADY_CHECKED_* errors still carry
// the existing record so the station can display it.
func writeEvent(c *gin.Context, result *dto.AttendanceResult, err error) {
	switch {
	case err != nil && result != nil:
		response.ErrorWithData(c, err, result)
	case err != nil:
		response.Error(c, err)
	default:
		response.JSON(c, http.StatusOK, result, nil)
	}
}
