package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-attendance-api/internal/middleware"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/response"
)

// requireClaims returns the authenticated administrator or writes a 401.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}
