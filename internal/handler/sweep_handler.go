package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/response"
)

type sweepService interface {
	MissedSignIn(ctx context.Context, ownerID string) (*dto.SweepResult, error)
	MissedSignOut(ctx context.Context, ownerID string) (*dto.SweepResult, error)
}

// SweepHandler triggers the missed-event notification sweeps.
type SweepHandler struct {
	service sweepService
}

// NewSweepHandler constructs the handler.
func NewSweepHandler(svc sweepService) *SweepHandler {
	return &SweepHandler{service: svc}
}

// MissedSignIn godoc
// @Summary Notify teachers without a record today
// @Tags Sweeps
// @Produce json
// @Security BearerAuth
// @Param owner query string false "Restrict to one administrator's teachers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /sweeps/missed-sign-in [post]
func (h *SweepHandler) MissedSignIn(c *gin.Context) {
	owner, ok := sweepOwner(c)
	if !ok {
		return
	}
	result, err := h.service.MissedSignIn(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MissedSignOut godoc
// @Summary Notify teachers who checked in but not out
// @Description Reported as skipped until the check-out window has closed
// @Tags Sweeps
// @Produce json
// @Security BearerAuth
// @Param owner query string false "Restrict to one administrator's teachers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /sweeps/missed-sign-out [post]
func (h *SweepHandler) MissedSignOut(c *gin.Context) {
	owner, ok := sweepOwner(c)
	if !ok {
		return
	}
	result, err := h.service.MissedSignOut(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// sweepOwner reads the optional owner filter. Empty means every owner.
func sweepOwner(c *gin.Context) (string, bool) {
	owner := strings.TrimSpace(c.Query("owner"))
	if owner == "" {
		return "", true
	}
	if _, err := uuid.Parse(owner); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "owner must be a UUID"))
		return "", false
	}
	return owner, true
}
