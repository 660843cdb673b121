package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-admin-console/api/swagger"
	"github.com/noah-isme/campus-admin-console/internal/handler"
	"github.com/noah-isme/campus-admin-console/internal/models"
	"github.com/noah-isme/campus-admin-console/internal/repository"
	"github.com/noah-isme/campus-admin-console/internal/schema"
	"github.com/noah-isme/campus-admin-console/internal/service"
	"github.com/noah-isme/campus-admin-console/pkg/cache"
	"github.com/noah-isme/campus-admin-console/pkg/config"
	"github.com/noah-isme/campus-admin-console/pkg/database"
	"github.com/noah-isme/campus-admin-console/pkg/export"
	"github.com/noah-isme/campus-admin-console/pkg/logger"
	"github.com/noah-isme/campus-admin-console/pkg/storage"
)

// @title Campus Admin Console API
// @version 1.0.0
// @description JSON surface of the campus admin console
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey ConsoleSession
// @in header
// @name X-Console-Session

type sessionRepository interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{}

	var sessionRepo sessionRepository = repository.NewMemorySessionRepository()
	if cfg.Session.Store == config.SessionStoreRedis {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		sessionRepo = repository.NewRedisSessionRepository(redisClient, logr)
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	defer sessionRepo.Close() //nolint:errcheck

	var auditService *service.AuditService
	if cfg.Audit.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()
		checks["database"] = handler.PingFunc(db.PingContext)
		auditService = service.NewAuditService(repository.NewAuditRepository(db), metrics, auditConfig(cfg), logr)
	} else {
		auditService = service.NewAuditService(nil, metrics, auditConfig(cfg), logr)
	}

	sessions := service.NewSessionService(sessionRepo, metrics, service.SessionConfig{TTL: cfg.Session.TTL}, logr)
	workspaces := service.NewWorkspaceService(schema.Default(), sessions, auditService, metrics, service.WorkspaceConfig{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		DefaultPageSize: cfg.Console.DefaultPageSize,
		MaxPageSize:     cfg.Console.MaxPageSize,
		IdleTTL:         cfg.Console.WorkspaceIdleTTL,
	}, logr)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	exports := service.NewExportService(store, storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), service.ExportConfig{
		DownloadPrefix: "/exports",
		MaxRows:        cfg.Exports.MaxRows,
		PageSize:       cfg.Console.MaxPageSize,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	router, err := handler.NewRouter(handler.RouterConfig{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Cookie: handler.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.Secure,
		},
	}, handler.Dependencies{
		Sessions:   sessions,
		Workspaces: workspaces,
		Exports:    exports,
		Audit:      auditService,
		Metrics:    metrics,
		Checks:     checks,
		Logger:     logr,
	})
	if err != nil {
		logr.Fatal("failed to build router", zap.Error(err))
	}

	auditService.Start(ctx)

	var background sync.WaitGroup
	runBackground(&background, func() { workspaces.Run(ctx, time.Minute) })
	runBackground(&background, func() { exports.Run(ctx, cfg.Exports.CleanupInterval) })
	runBackground(&background, func() { auditService.RunRetention(ctx, 24*time.Hour) })

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting",
			"addr", srv.Addr,
			"env", cfg.Env,
			"upstream", cfg.Upstream.BaseURL,
			"session_store", cfg.Session.Store,
			"audit", auditService.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}

	background.Wait()
	auditService.Stop()
	logr.Info("server stopped")
}

func auditConfig(cfg *config.Config) service.AuditConfig {
	return service.AuditConfig{
		Workers:   cfg.Audit.Workers,
		Retries:   cfg.Audit.Retries,
		Retention: cfg.Audit.Retention,
	}
}

func runBackground(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}
