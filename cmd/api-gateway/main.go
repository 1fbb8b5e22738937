package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/vettedhq/sourcing-api/api/swagger"
	"github.com/vettedhq/sourcing-api/internal/handler"
	"github.com/vettedhq/sourcing-api/internal/middleware"
	"github.com/vettedhq/sourcing-api/internal/repository"
	"github.com/vettedhq/sourcing-api/internal/service"
	"github.com/vettedhq/sourcing-api/pkg/cache"
	"github.com/vettedhq/sourcing-api/pkg/config"
	"github.com/vettedhq/sourcing-api/pkg/database"
	"github.com/vettedhq/sourcing-api/pkg/logger"
	corsmiddleware "github.com/vettedhq/sourcing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vettedhq/sourcing-api/pkg/middleware/requestid"
	"github.com/vettedhq/sourcing-api/pkg/storage"
)

// @title Sourcing API
// @version 0.1.0
// @description Expert request candidate pipeline service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.PublicIntake.CacheTTL, logr, true)
	}

	requestRepo := repository.NewRequestRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	expertRepo := repository.NewExpertRepository(db)

	authSvc := service.NewAuthService(cfg.JWT, logr)
	requestSvc := service.NewRequestService(requestRepo, candidateRepo, cacheSvc, validate, logr)
	candidateSvc := service.NewCandidateService(candidateRepo, requestRepo, validate, logr)
	publicSvc := service.NewPublicService(requestRepo, candidateRepo, cacheSvc, cfg.PublicIntake, validate, logr)
	matchingSvc := service.NewMatchingService(requestRepo, expertRepo, cacheSvc, cfg.Matching, logr)
	expertSvc := service.NewExpertService(expertRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportRepository(db)
		exportSvc = service.NewExportService(exportRepo, requestRepo, candidateRepo, store, signer, cfg.Exports, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	requestHandler := handler.NewRequestHandler(requestSvc)
	candidateHandler := handler.NewCandidateHandler(candidateSvc)
	publicHandler := handler.NewPublicHandler(publicSvc)
	matchingHandler := handler.NewMatchingHandler(matchingSvc)
	expertHandler := handler.NewExpertHandler(expertSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	public := r.Group("/public")
	public.Use(middleware.OptionalJWT(authSvc))
	{
		public.GET("/opportunities/:slug", publicHandler.GetOpportunity)
		public.POST("/opportunities/:slug/apply", publicHandler.Apply)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		api.GET("/requests", requestHandler.List)
		api.POST("/requests", requestHandler.Create)
		api.GET("/requests/:id", requestHandler.Get)
		api.PUT("/requests/:id", requestHandler.Update)
		api.DELETE("/requests/:id", requestHandler.Delete)
		api.POST("/requests/:id/open", requestHandler.Open)
		api.POST("/requests/:id/close", requestHandler.Close)
		api.PUT("/requests/:id/visibility", requestHandler.SetPublic)
		api.GET("/requests/:id/stats", requestHandler.Stats)

		api.GET("/requests/:id/candidates", candidateHandler.ListByRequest)
		api.POST("/requests/:id/candidates", candidateHandler.Add)
		api.GET("/candidates/:id", candidateHandler.Get)
		api.PATCH("/candidates/:id/status", candidateHandler.SetStatus)
		api.POST("/candidates/:id/transition", candidateHandler.ProposeTransition)
		api.PUT("/candidates/:id/responses", candidateHandler.SubmitResponses)
		api.POST("/candidates/:id/notes", candidateHandler.AddInternalNote)
		api.POST("/candidates/:id/client-notes", candidateHandler.AddClientNote)
		api.POST("/candidates/:id/viewed", candidateHandler.MarkViewed)
		api.DELETE("/candidates/:id", candidateHandler.Remove)

		api.GET("/experts", expertHandler.Search)
		api.GET("/experts/:id", expertHandler.Get)
		api.POST("/requests/:id/match", matchingHandler.Match)

		api.GET("/system/metrics", metricsHandler.Snapshot)

		if exportSvc != nil {
			exportHandler := handler.NewExportHandler(exportSvc)
			api.POST("/requests/:id/exports", exportHandler.Create)
			api.GET("/exports/:id", exportHandler.Get)
			r.GET("/exports/download", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
