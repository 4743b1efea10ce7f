package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
)

type fakeTeachers struct {
	lastOwner   string
	lastID      string
	lastFilter  models.TeacherFilter
	lastCreate  dto.CreateTeacherRequest
	deactivated bool
	purged      bool
	err         error
}

func (f *fakeTeachers) List(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.Teacher{{ID: "t1", Name: "Ana"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, f.err
}

func (f *fakeTeachers) Get(_ context.Context, ownerID, id string) (*dto.TeacherDetail, error) {
	f.lastOwner, f.lastID = ownerID, id
	if f.err != nil {
		return nil, f.err
	}
	return &dto.TeacherDetail{Teacher: models.Teacher{ID: id, Name: "Ana"}}, nil
}

func (f *fakeTeachers) Register(_ context.Context, ownerID string, req dto.CreateTeacherRequest) (*dto.TeacherRegistration, error) {
	f.lastOwner, f.lastCreate = ownerID, req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.TeacherRegistration{
		Teacher: models.Teacher{ID: "t1", UniqueID: "a1b2c3d4", Name: req.Name, OwnerID: ownerID},
		Badge:   dto.TeacherBadge{UniqueID: "a1b2c3d4", Payload: "TEACHER:a1b2c3d4"},
	}, nil
}

func (f *fakeTeachers) Update(_ context.Context, ownerID, id string, req dto.UpdateTeacherRequest) (*models.Teacher, error) {
	f.lastOwner, f.lastID = ownerID, id
	return &models.Teacher{ID: id, Name: req.Name}, f.err
}

func (f *fakeTeachers) Deactivate(_ context.Context, ownerID, id string) error {
	f.lastOwner, f.lastID = ownerID, id
	f.deactivated = true
	return f.err
}

func (f *fakeTeachers) Purge(_ context.Context, ownerID, id string) (int64, error) {
	f.lastOwner, f.lastID = ownerID, id
	f.purged = true
	return 4, f.err
}

func (f *fakeTeachers) Badge(_ context.Context, ownerID, id string) (*dto.TeacherBadge, error) {
	f.lastOwner, f.lastID = ownerID, id
	return &dto.TeacherBadge{UniqueID: "a1b2c3d4", DownloadURL: "http://localhost/api/v1/badges/token"}, f.err
}

func (f *fakeTeachers) ResolveBadge(_ context.Context, token string) (*dto.BadgeFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.BadgeFile{Filename: "teacher_a1b2c3d4.png", Content: []byte("\x89PNG")}, nil
}

func TestTeacherCreateUsesCallerAsOwner(t *testing.T) {
	svc := &fakeTeachers{}
	handler := NewTeacherHandler(svc)

	c, rec := newContext(http.MethodPost, "/teachers", `{"name":"Ana","email":"ana@school.org"}`, adminClaims())
	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "owner-1", svc.lastOwner)
	assert.Equal(t, "Ana", svc.lastCreate.Name)
	require.NotNil(t, svc.lastCreate.Email)

	var registration dto.TeacherRegistration
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &registration))
	assert.Equal(t, "TEACHER:a1b2c3d4", registration.Badge.Payload)
}

func TestTeacherCreateRequiresAuth(t *testing.T) {
	handler := NewTeacherHandler(&fakeTeachers{})
	c, rec := newContext(http.MethodPost, "/teachers", `{"name":"Ana"}`, nil)
	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTeacherCreateConflict(t *testing.T) {
	handler := NewTeacherHandler(&fakeTeachers{err: appErrors.Clone(appErrors.ErrConflict, "A teacher with this name already exists")})
	c, rec := newContext(http.MethodPost, "/teachers", `{"name":"Ana"}`, adminClaims())
	handler.Create(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec).Error.Code)
}

func TestTeacherListFilters(t *testing.T) {
	svc := &fakeTeachers{}
	handler := NewTeacherHandler(svc)

	c, rec := newContext(http.MethodGet, "/teachers?search=ana&active=false&page=2&limit=5", "", adminClaims())
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", svc.lastFilter.OwnerID)
	assert.Equal(t, "ana", svc.lastFilter.Search)
	require.NotNil(t, svc.lastFilter.Active)
	assert.False(t, *svc.lastFilter.Active)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 5, svc.lastFilter.PageSize)
}

func TestTeacherDeleteDeactivatesByDefault(t *testing.T) {
	svc := &fakeTeachers{}
	handler := NewTeacherHandler(svc)

	c, rec := newContext(http.MethodDelete, "/teachers/t1", "", adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.deactivated)
	assert.False(t, svc.purged)
	assert.Equal(t, "t1", svc.lastID)
}

func TestTeacherDeletePurge(t *testing.T) {
	svc := &fakeTeachers{}
	handler := NewTeacherHandler(svc)

	c, rec := newContext(http.MethodDelete, "/teachers/t1?purge=true", "", adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Delete(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.purged)
	assert.False(t, svc.deactivated)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, float64(4), body["records_removed"])
}

func TestTeacherGetNotFound(t *testing.T) {
	handler := NewTeacherHandler(&fakeTeachers{err: appErrors.Clone(appErrors.ErrNotFound, "teacher not found")})
	c, rec := newContext(http.MethodGet, "/teachers/x", "", adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadBadge(t *testing.T) {
	handler := NewTeacherHandler(&fakeTeachers{})
	c, rec := newContext(http.MethodGet, "/badges/token", "", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.DownloadBadge(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "teacher_a1b2c3d4.png")

	handler = NewTeacherHandler(&fakeTeachers{err: appErrors.Clone(appErrors.ErrForbidden, "download link expired")})
	c, rec = newContext(http.MethodGet, "/badges/token", "", nil)
	handler.DownloadBadge(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
