package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusreg/enrollment-api/api/swagger"
	"github.com/campusreg/enrollment-api/internal/handler"
	"github.com/campusreg/enrollment-api/internal/middleware"
	"github.com/campusreg/enrollment-api/internal/repository"
	"github.com/campusreg/enrollment-api/internal/service"
	"github.com/campusreg/enrollment-api/pkg/cache"
	"github.com/campusreg/enrollment-api/pkg/config"
	"github.com/campusreg/enrollment-api/pkg/database"
	"github.com/campusreg/enrollment-api/pkg/export"
	"github.com/campusreg/enrollment-api/pkg/logger"
	corsmiddleware "github.com/campusreg/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusreg/enrollment-api/pkg/middleware/requestid"
)

// @title Course Enrollment API
// @version 0.1.0
// @description Course enrollment engine with rule evaluation, caching and grade processing
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	txRunner := repository.NewTxRunner(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled)

	notificationSvc := service.NewNotificationService(cfg.Notifications, service.NewLogSink(logr), logr)
	notificationSvc.Start(context.Background())
	defer notificationSvc.Stop()

	enrollmentSvc := service.NewEnrollmentService(
		studentRepo, courseRepo, enrollmentRepo,
		txRunner, cacheSvc, notificationSvc, metricsSvc,
		nil, logr, cfg.Enrollment, cfg.Cache,
	)
	studentSvc := service.NewStudentService(
		studentRepo, enrollmentRepo, cacheSvc,
		export.NewCSVExporter(), export.NewPDFExporter(),
		logr, cfg.Cache,
	)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, cacheSvc, logr, cfg.Cache)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Identity(cfg.JWT.Secret))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": "postgres"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Create)
		api.GET("/students/:id", studentHandler.Get)
		api.PUT("/students/:id", studentHandler.Update)
		api.GET("/students/:id/gpa", studentHandler.GPA)
		api.GET("/students/:id/transcript", studentHandler.Transcript)

		api.GET("/courses", courseHandler.List)
		api.POST("/courses", courseHandler.Create)
		api.GET("/courses/:id", courseHandler.Get)
		api.GET("/courses/:id/enrollments", courseHandler.Enrollments)

		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments", enrollmentHandler.Create)
		api.DELETE("/enrollments/:id", enrollmentHandler.Delete)
		api.POST("/enrollments/:id/grade", enrollmentHandler.SubmitGrade)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
