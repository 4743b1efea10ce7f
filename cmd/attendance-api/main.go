package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/teacher-attendance-api/api/swagger"
	"github.com/noah-isme/teacher-attendance-api/internal/badge"
	"github.com/noah-isme/teacher-attendance-api/internal/handler"
	"github.com/noah-isme/teacher-attendance-api/internal/middleware"
	"github.com/noah-isme/teacher-attendance-api/internal/policy"
	"github.com/noah-isme/teacher-attendance-api/internal/repository"
	"github.com/noah-isme/teacher-attendance-api/internal/service"
	"github.com/noah-isme/teacher-attendance-api/pkg/cache"
	"github.com/noah-isme/teacher-attendance-api/pkg/config"
	"github.com/noah-isme/teacher-attendance-api/pkg/database"
	"github.com/noah-isme/teacher-attendance-api/pkg/jobs"
	"github.com/noah-isme/teacher-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teacher-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teacher-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
	"github.com/noah-isme/teacher-attendance-api/pkg/storage"
)

// @title Teacher Attendance API
// @version 1.0.0
// @description QR based teacher check-in and check-out with summaries and notifications
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "attendance-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
	} else {
		redisClient = client
		defer client.Close()
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	engine := policy.FromConfig(cfg.Attendance)
	clock := policy.SystemClock{}

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	summaryCache := service.NewSummaryCache(cacheRepo, metricsSvc, cfg.Summary.CacheTTL, logr, cfg.Summary.CacheEnabled && redisClient != nil)

	notifier := service.NewNotificationService(notify.FromConfig(cfg.SMTP, cfg.SMS, cfg.Notify.Timeout), cfg.Notify.Timeout, metricsSvc, logr)
	if cfg.Notify.Async {
		queue := jobs.NewQueue("notifications", notifier.HandleJob, jobs.QueueConfig{
			Workers:    cfg.Notify.Workers,
			BufferSize: cfg.Notify.QueueSize,
			JobTimeout: cfg.Notify.Timeout,
			Logger:     logr,
		})
		notifier.UseQueue(queue)
		queue.Start(ctx)
		defer queue.Stop()
	}

	badgeStore, err := storage.NewLocalStorage(cfg.Badges.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare badge storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Badges.SignedURLSecret, cfg.Badges.SignedURLTTL)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		Issuer:             "teacher-attendance-api",
		SuperAdminUsername: cfg.Bootstrap.SuperAdminUsername,
	})
	attendanceSvc := service.NewAttendanceService(teacherRepo, attendanceRepo, engine, clock, notifier, summaryCache, metricsSvc, logr,
		service.AttendanceConfig{AllowTimeOverride: cfg.Attendance.AllowTimeOverride})
	summarySvc := service.NewSummaryService(attendanceRepo, engine, clock, summaryCache, logr)
	sweepSvc := service.NewSweepService(attendanceRepo, engine, clock, notifier, metricsSvc, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, attendanceRepo, badge.NewIssuer(badgeStore), signer, notifier, summaryCache, validate, logr,
		service.TeacherServiceConfig{BadgeURLBase: cfg.PublicBaseURL + cfg.APIPrefix + "/badges"})

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = cacheRepo
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metricsSvc))

	handler.Routes{
		Auth:     handler.NewAuthHandler(authSvc),
		Station:  handler.NewStationHandler(attendanceSvc),
		Teachers: handler.NewTeacherHandler(teacherSvc),
		Reports:  handler.NewReportHandler(summarySvc),
		Sweeps:   handler.NewSweepHandler(sweepSvc),
		Metrics:  handler.NewMetricsHandler(metricsSvc, deps),
		Tokens:   authSvc,
		Audit:    userRepo,
		Logger:   logr,
	}.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("timezone", engine.Location().String()),
			zap.Bool("notify_async", cfg.Notify.Async),
			zap.Bool("summary_cache", summaryCache.Enabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
