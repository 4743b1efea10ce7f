package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-attendance-api/internal/models"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type stubAuditRecorder struct {
	logs []*models.AuditLog
	err  error
}

func (s *stubAuditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	return router
}

func serve(router *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func TestJWT(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := newRouter()
	router.GET("/me", JWT(validator), func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.UserID)
	})

	rec := serve(router, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodGet, "/me", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCodeOf(t, rec))

	rec = serve(router, http.MethodGet, "/me", "Bearer abc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
	assert.Equal(t, "abc", validator.seen)

	validator.err = appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	rec = serve(router, http.MethodGet, "/me", "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := newRouter()
	router.POST("/sweeps", JWT(validator), RequireRoles(models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	rec := serve(router, http.MethodPost, "/sweeps", "Bearer abc")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCodeOf(t, rec))

	validator.claims.Role = models.RoleSuperAdmin
	rec = serve(router, http.MethodPost, "/sweeps", "Bearer abc")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	router := newRouter()
	router.GET("/", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := serve(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditRecordsSuccessfulMutations(t *testing.T) {
	recorder := &stubAuditRecorder{}
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := newRouter()
	router.DELETE("/teachers/:id", JWT(validator), Audit(recorder, nil, models.AuditActionTeacherRemove, models.AuditResourceTeacher), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	rec := serve(router, http.MethodDelete, "/teachers/t1", "Bearer abc")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, recorder.logs, 1)
	entry := recorder.logs[0]
	assert.Equal(t, models.AuditActionTeacherRemove, entry.Action)
	assert.Equal(t, models.AuditResourceTeacher, entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "t1", *entry.ResourceID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, "/teachers/:id", details["path"])

	serve(router, http.MethodDelete, "/teachers/missing", "Bearer abc")
	assert.Len(t, recorder.logs, 1)

	recorder.err = errors.New("db down")
	rec = serve(router, http.MethodDelete, "/teachers/t2", "Bearer abc")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestResponseMetaCacheHit(t *testing.T) {
	router := newRouter()
	router.GET("/summary", func(c *gin.Context) {
		MarkCache(c, true)
		c.JSON(http.StatusOK, Meta(c))
	})
	rec := serve(router, http.MethodGet, "/summary", "")
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestResponseMetaOmitsCacheHitWhenUnset(t *testing.T) {
	router := newRouter()
	router.GET("/teachers", func(c *gin.Context) {
		c.JSON(http.StatusOK, Meta(c))
	})
	rec := serve(router, http.MethodGet, "/teachers", "")
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.NotContains(t, meta, "cache_hit")
}
