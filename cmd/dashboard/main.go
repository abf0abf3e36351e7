package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/clinic-dashboard/api/swagger"
	"github.com/noah-isme/clinic-dashboard/internal/apiclient"
	"github.com/noah-isme/clinic-dashboard/internal/handler"
	"github.com/noah-isme/clinic-dashboard/internal/listview"
	"github.com/noah-isme/clinic-dashboard/internal/middleware"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/repository"
	"github.com/noah-isme/clinic-dashboard/internal/service"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	"github.com/noah-isme/clinic-dashboard/internal/web"
	"github.com/noah-isme/clinic-dashboard/pkg/cache"
	"github.com/noah-isme/clinic-dashboard/pkg/config"
	"github.com/noah-isme/clinic-dashboard/pkg/database"
	"github.com/noah-isme/clinic-dashboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinic-dashboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinic-dashboard/pkg/middleware/requestid"
)

// @title Clinic Dashboard
// @version 1.0.0
// @description Administrative dashboard for clinic staff over the clinic content API
// @BasePath /
// @schemes http

const viewIdleTimeout = 30 * time.Minute

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
	validate := validator.New()

	api := apiclient.New(apiclient.Config{
		BaseURL:  cfg.Strapi.BaseURL,
		Timeout:  cfg.Strapi.Timeout,
		Logger:   logr,
		Observer: metrics,
	})

	var (
		redisClient *redis.Client
		probes      []handler.ReadinessCheck
	)
	if cfg.Session.Store == config.SessionStoreRedis || cfg.Stats.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, falling back to in-process stores", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
			probes = append(probes, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}})
		}
	}

	var sessions session.Repository = session.NewMemoryRepository()
	if cfg.Session.Store == config.SessionStoreRedis && redisClient != nil {
		sessions = repository.NewRedisSessionRepository(redisClient)
	}

	cacheRepo := repository.NewCacheRepository(redisClient, "clinic", logr)
	statsCache := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled && redisClient != nil)

	var (
		auditSvc     *service.AuditService
		auditHandler *handler.AuditHandler
		auditTrail   middleware.AuditRecorder
	)
	if cfg.Audit.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Warn("audit trail disabled, database unavailable", zap.Error(err))
		} else {
			defer db.Close() //nolint:errcheck
			probes = append(probes, handler.ReadinessCheck{Name: "audit_db", Check: db.PingContext})
			auditRepo := repository.NewAuditRepository(db)
			if err := auditRepo.EnsureSchema(ctx); err != nil {
				logr.Fatal("failed to prepare audit schema", zap.Error(err))
			}
			auditSvc = service.NewAuditService(auditRepo, metrics, logr, service.AuditConfig{
				Workers:    cfg.Audit.Workers,
				MaxRetries: cfg.Audit.Retries,
				RetryDelay: time.Second,
			})
			auditSvc.Start(ctx)
			defer auditSvc.Stop()
			auditHandler = handler.NewAuditHandler(auditSvc)
			auditTrail = auditSvc
		}
	}

	adminRole := models.ClinicRole(cfg.Roles.Admin)
	authSvc := service.NewAuthService(api, validate, logr, auditTrail)
	userSvc := service.NewUserService(api, validate, logr, statsCache, auditTrail, service.UserConfig{
		PageSize:      cfg.Listing.PageSize,
		StatsPageSize: cfg.Listing.StatsPageSize,
		AdminRole:     adminRole,
		MemberRole:    models.ClinicRole(cfg.Roles.DefaultMember),
		DefaultRoleID: cfg.Roles.DefaultRoleID,
		StatsTTL:      cfg.Stats.CacheTTL,
	})
	analysisSvc := service.NewAnalysisService(api, validate, logr, statsCache, auditTrail, service.AnalysisConfig{
		PageSize:      cfg.Listing.PageSize,
		StatsPageSize: cfg.Listing.StatsPageSize,
		StatsTTL:      cfg.Stats.CacheTTL,
	})
	exportSvc := service.NewExportService(nil, nil)

	views := listview.NewRegistry()
	go pruneViews(ctx, views, logr)

	renderer, err := web.NewRenderer()
	if err != nil {
		logr.Fatal("failed to parse templates", zap.Error(err))
	}
	assets, err := web.Static()
	if err != nil {
		logr.Fatal("failed to load static assets", zap.Error(err))
	}

	r := gin.New()
	r.HTMLRender = renderer
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.StaticFS("/static", http.FS(assets))
	handler.RegisterProbes(r, handler.NewMetricsHandler(metrics, probes...))

	dashboard := r.Group("/")
	dashboard.Use(middleware.Session(sessions, middleware.SessionOptions{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	}, views, logr))
	handler.Register(dashboard, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc, views),
		Dashboard:  handler.NewDashboardHandler(analysisSvc, exportSvc, views, logr),
		Analysis:   handler.NewAnalysisHandler(analysisSvc, cfg.Upload.MaxAudioBytes),
		Users:      handler.NewUserHandler(userSvc, exportSvc, views, adminRole, logr),
		Audit:      auditHandler,
		AuditTrail: auditTrail,
	}, adminRole)
	r.NoRoute(handler.NoRoute)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "strapi", cfg.Strapi.BaseURL, "session_store", cfg.Session.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func pruneViews(ctx context.Context, views *listview.Registry, logr *zap.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := views.Prune(viewIdleTimeout); removed > 0 {
				logr.Debug("pruned idle list views", zap.Int("count", removed))
			}
		}
	}
}
