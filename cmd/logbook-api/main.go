package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/residency-logbook-api/api/swagger"
	"github.com/noah-isme/residency-logbook-api/internal/handler"
	"github.com/noah-isme/residency-logbook-api/internal/middleware"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	"github.com/noah-isme/residency-logbook-api/internal/repository"
	"github.com/noah-isme/residency-logbook-api/internal/service"
	"github.com/noah-isme/residency-logbook-api/pkg/cache"
	"github.com/noah-isme/residency-logbook-api/pkg/config"
	"github.com/noah-isme/residency-logbook-api/pkg/database"
	"github.com/noah-isme/residency-logbook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/residency-logbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/residency-logbook-api/pkg/middleware/requestid"
	"github.com/noah-isme/residency-logbook-api/pkg/storage"
)

// @title Residency Logbook API
// @version 1.0.0
// @description Sign-off workflow engine for clinical residency logbooks
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ListTTL, logr, true)
		}
	}

	recordRepo := repository.NewRecordRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	signatureRepo := repository.NewSignatureRepository(db)
	reviewSettingRepo := repository.NewReviewSettingRepository(db)
	userRepo := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "residency-logbook-api",
	})

	policySvc := service.NewReviewPolicyService(reviewSettingRepo, userRepo, validate, logr)
	seedReviewPolicies(cfg, reviewSettingRepo, logr)

	bus := service.NewTransitionBus([]service.TransitionSubscriber{
		service.NewCacheInvalidator(cacheSvc),
		service.NewAuditRecorder(userRepo),
	}, logr)
	bus.Start(context.Background())
	defer bus.Stop()

	lifecycleSvc := service.NewLifecycleService(recordRepo, assignmentRepo, signatureRepo, policySvc, logr,
		service.WithSystemSignerID(cfg.Review.SystemSignerID),
		service.WithTransitionPublisher(bus),
	)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, userRepo, userRepo, validate, logr)
	summarySvc := service.NewSummaryService(recordRepo, assignmentRepo, cacheSvc, cfg.Cache.SummaryTTL, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(recordRepo, assignmentRepo, store, signer, validate, logr, service.ExportServiceConfig{
			WorkerConcurrency: cfg.Exports.WorkerConcurrency,
			WorkerRetries:     cfg.Exports.WorkerRetries,
			CleanupInterval:   cfg.Exports.CleanupInterval,
		})
		exportSvc.Start(context.Background())
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	recordHandler := handler.NewRecordHandler(lifecycleSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	policyHandler := handler.NewReviewPolicyHandler(policySvc)
	summaryHandler := handler.NewSummaryHandler(summarySvc)
	categoryHandler := handler.NewCategoryHandler()
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/categories", categoryHandler.List)

		protected.POST("/records", middleware.RequireRoles(models.RoleStudent), recordHandler.Create)
		protected.GET("/records", recordHandler.List)
		protected.GET("/records/:id", recordHandler.Get)
		protected.PUT("/records/:id", middleware.RequireRoles(models.RoleStudent), recordHandler.Update)
		protected.DELETE("/records/:id", middleware.RequireRoles(models.RoleStudent), recordHandler.Delete)
		protected.POST("/records/:id/submit", middleware.RequireRoles(models.RoleStudent), recordHandler.Submit)
		protected.POST("/records/:id/sign", middleware.Reviewers(), recordHandler.Sign)
		protected.POST("/records/:id/reject", middleware.Reviewers(), recordHandler.Reject)
		protected.GET("/records/:id/signatures", recordHandler.Signatures)

		protected.GET("/assignments", assignmentHandler.List)
		protected.POST("/assignments", middleware.RequireRoles(models.RoleHOD), assignmentHandler.Create)
		protected.DELETE("/assignments/:id", middleware.RequireRoles(models.RoleHOD), assignmentHandler.Delete)

		protected.GET("/review-policies", policyHandler.List)
		protected.PUT("/review-policies", middleware.Reviewers(), policyHandler.Set)

		protected.GET("/summary", summaryHandler.Mine)
		protected.GET("/students/:id/summary", summaryHandler.ForStudent)

		protected.GET("/ops/metrics", middleware.RequireRoles(models.RoleHOD), metricsHandler.Snapshot)

		if exportSvc != nil {
			exportHandler := handler.NewExportHandler(exportSvc)
			protected.POST("/exports", exportHandler.Create)
			protected.GET("/exports/:id", exportHandler.Status)
			api.GET("/exports/download/:token", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// seedReviewPolicies applies the AUTO_REVIEW_CATEGORIES overrides at boot so
// a fresh database matches the configured policy.
func seedReviewPolicies(cfg *config.Config, repo *repository.ReviewSettingRepository, logr *zap.Logger) {
	for _, cat := range cfg.Review.AutoReviewCategories {
		setting := &models.ReviewSetting{
			Category:   cat,
			AutoReview: true,
			UpdatedBy:  cfg.Review.SystemSignerID,
		}
		if err := repo.Upsert(context.Background(), setting); err != nil {
			logr.Sugar().Warnw("failed to seed review policy", "category", cat, "error", err)
		}
	}
}
