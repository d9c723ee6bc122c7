package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/onboarding-api/api/swagger"
	"github.com/noah-isme/onboarding-api/internal/catalog"
	"github.com/noah-isme/onboarding-api/internal/handler"
	"github.com/noah-isme/onboarding-api/internal/middleware"
	"github.com/noah-isme/onboarding-api/internal/repository"
	"github.com/noah-isme/onboarding-api/internal/service"
	"github.com/noah-isme/onboarding-api/pkg/cache"
	"github.com/noah-isme/onboarding-api/pkg/config"
	"github.com/noah-isme/onboarding-api/pkg/database"
	"github.com/noah-isme/onboarding-api/pkg/export"
	"github.com/noah-isme/onboarding-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/onboarding-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/onboarding-api/pkg/middleware/requestid"
	"github.com/noah-isme/onboarding-api/pkg/storage"
)

const cacheKeyPrefix = "onboarding:"

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logr, err := bootstrap()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logr, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger, migrate bool) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if _, err := database.Migrate(ctx, db, logr); err != nil {
			return err
		}
	}

	tmplCatalog, err := catalog.Load(cfg.Onboarding.CatalogPath)
	if err != nil {
		return err
	}
	logr.Info("template catalog loaded", zap.String("version", tmplCatalog.Version()))

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, checklist cache disabled", zap.Error(err))
	}
	var cacheClient redis.UniversalClient
	if redisClient != nil {
		cacheClient = redisClient
	}
	cacheRepo := repository.NewCacheRepository(cacheClient, cacheKeyPrefix, logr)
	defer cacheRepo.Close() //nolint:errcheck

	checklistRepo := repository.NewChecklistRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Onboarding.CacheTTL, logr, cfg.Onboarding.CacheEnabled && cacheClient != nil)

	docStore, err := storage.NewLocalStorage(cfg.Onboarding.DocumentStorageDir)
	if err != nil {
		return fmt.Errorf("document storage: %w", err)
	}
	documentSvc := service.NewDocumentService(docStore,
		storage.NewSignedURLSigner(cfg.Onboarding.DocumentSignedURLSecret, cfg.Onboarding.DocumentSignedURLTTL),
		service.DocumentConfig{APIPrefix: cfg.APIPrefix, MaxSize: cfg.Onboarding.DocumentMaxSizeBytes})
	linkSvc := service.NewLinkService(storage.NewSignedURLSigner(cfg.Onboarding.PublicLinkSecret, cfg.Onboarding.PublicLinkTTL))

	activationSvc := service.NewActivationService(userRepo, auditRepo, metricsSvc, logr, service.ActivationConfig{
		Workers:    cfg.Onboarding.ActivationWorkers,
		MaxRetries: cfg.Onboarding.ActivationRetries,
	})
	activationSvc.Start(ctx)
	defer activationSvc.Stop()

	checklistSvc := service.NewChecklistService(service.ChecklistServiceDeps{
		Store:      checklistRepo,
		Accounts:   userRepo,
		Composer:   service.NewComposer(tmplCatalog),
		Activation: activationSvc,
		Documents:  documentSvc,
		Audit:      auditRepo,
		Cache:      cacheSvc,
		Metrics:    metricsSvc,
		Validator:  validator.New(),
		Logger:     logr,
		CacheTTL:   cfg.Onboarding.CacheTTL,
	})
	exportSvc := service.NewExportService(checklistSvc, export.NewRegistry(), auditRepo, metricsSvc, logr, service.ExportConfig{
		Title: cfg.Exports.Title,
	})
	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/health", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, r.Group(cfg.APIPrefix), handler.Routes{
		Auth:        authSvc,
		Links:       linkSvc,
		Audit:       auditRepo,
		Logger:      logr,
		Onboarding:  handler.NewOnboardingHandler(checklistSvc, linkSvc, documentSvc, exportSvc, logr),
		Public:      handler.NewPublicHandler(checklistSvc, documentSvc),
		Documents:   handler.NewDocumentHandler(documentSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc, db),
		ExportsOpen: cfg.Exports.Enabled,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
