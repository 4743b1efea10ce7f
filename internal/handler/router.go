package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-attendance-api/internal/middleware"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
)

// Routes bundles the handlers mounted under the API prefix.
type Routes struct {
	Auth     *AuthHandler
	Station  *StationHandler
	Teachers *TeacherHandler
	Reports  *ReportHandler
	Sweeps   *SweepHandler
	Metrics  *MetricsHandler

	Tokens middleware.TokenValidator
	Audit  middleware.AuditRecorder
	Logger *zap.Logger
}

// Register mounts the operational endpoints on r and the API under prefix.
func (rt Routes) Register(r *gin.Engine, prefix string) {
	r.GET("/health", rt.Metrics.Health)
	r.GET("/ready", rt.Metrics.Ready)
	r.GET("/metrics", rt.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/register", rt.Auth.Register)
	auth.POST("/login", rt.Auth.Login)
	auth.GET("/me", middleware.JWT(rt.Tokens), rt.Auth.Me)

	station := api.Group("/attendance")
	station.POST("/scan", rt.Station.Scan)
	station.POST("/manual", rt.Station.Manual)
	station.GET("/teachers/:uniqueId", rt.Station.Lookup)
	station.GET("/teachers/:uniqueId/today", rt.Station.Today)
	api.GET("/badges/:token", rt.Teachers.DownloadBadge)

	admin := api.Group("")
	admin.Use(middleware.JWT(rt.Tokens), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	teachers := admin.Group("/teachers")
	teachers.GET("", rt.Teachers.List)
	teachers.POST("", rt.audit(models.AuditActionTeacherCreate, models.AuditResourceTeacher), rt.Teachers.Create)
	teachers.GET("/:id", rt.Teachers.Get)
	teachers.PUT("/:id", rt.audit(models.AuditActionTeacherUpdate, models.AuditResourceTeacher), rt.Teachers.Update)
	teachers.DELETE("/:id", rt.removalAudit(), rt.Teachers.Delete)
	teachers.GET("/:id/badge", rt.audit(models.AuditActionBadgeReissue, models.AuditResourceTeacher), rt.Teachers.Badge)

	reports := admin.Group("/attendance")
	reports.GET("/summary", rt.Reports.Summary)
	reports.GET("/dashboard", rt.Reports.Dashboard)
	reports.GET("/export", rt.Reports.Export)

	sweeps := admin.Group("/sweeps")
	sweeps.Use(middleware.RequireRoles(models.RoleSuperAdmin))
	sweeps.POST("/missed-sign-in", rt.audit(models.AuditActionSweepSignIn, models.AuditResourceAttendanceDay), rt.Sweeps.MissedSignIn)
	sweeps.POST("/missed-sign-out", rt.audit(models.AuditActionSweepSignOut, models.AuditResourceAttendanceDay), rt.Sweeps.MissedSignOut)
}

func (rt Routes) audit(action, resource string) gin.HandlerFunc {
	return middleware.Audit(rt.Audit, rt.Logger, action, resource)
}

// removalAudit distinguishes deactivation from purge by the query flag.
func (rt Routes) removalAudit() gin.HandlerFunc {
	remove := rt.audit(models.AuditActionTeacherRemove, models.AuditResourceTeacher)
	purge := rt.audit(models.AuditActionTeacherPurge, models.AuditResourceTeacher)
	return func(c *gin.Context) {
		if hard, _ := strconv.ParseBool(c.Query("purge")); hard {
			purge(c)
			return
		}
		remove(c)
	}
}
