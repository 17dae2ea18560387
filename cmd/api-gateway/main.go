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
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/handler"
	"github.com/noah-isme/sma-roster-api/internal/repository"
	"github.com/noah-isme/sma-roster-api/internal/service"
	"github.com/noah-isme/sma-roster-api/pkg/cache"
	"github.com/noah-isme/sma-roster-api/pkg/config"
	"github.com/noah-isme/sma-roster-api/pkg/database"
	"github.com/noah-isme/sma-roster-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-roster-api/pkg/middleware/requestid"
)

// @title SMA Roster API
// @version 1.0.0
// @description Student roster, index number allocation and edit permissions for school administration
// @BasePath /api/v1
// @schemes http https
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		logr.Info("redis disabled, settings are read from postgres on every request")
	case err != nil:
		logr.Warn("redis unavailable, continuing without settings cache", zap.Error(err))
		redisClient = nil
	default:
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	configRepo := repository.NewConfigurationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Settings.CacheTTL, logr, cfg.Settings.CacheEnabled && redisClient != nil)
	settingsSvc := service.NewSettingsService(configRepo, cacheSvc, auditRepo, validate, logr, service.SettingsServiceConfig{
		CacheTTL:          cfg.Settings.CacheTTL,
		DefaultPrefix:     cfg.IndexNumber.DefaultPrefix,
		DefaultSuffix:     cfg.IndexNumber.DefaultSuffix,
		DefaultPadding:    cfg.IndexNumber.DefaultPadding,
		DefaultPerClass:   cfg.IndexNumber.PerClass,
		SchoolDisplayName: cfg.Settings.DisplayName,
	})
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	permissionSvc := service.NewPermissionService(userRepo, settingsSvc, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, classRepo, auditRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, settingsSvc, db, auditRepo, metrics, validate, logr, service.StudentServiceConfig{
		MaxRetries: cfg.IndexNumber.MaxRetries,
	})

	deps := routeDeps{
		cfg:         cfg,
		logger:      logr,
		metrics:     metrics,
		audit:       auditRepo,
		auth:        authSvc,
		permissions: permissionSvc,
		handlers: handlers{
			auth:        handler.NewAuthHandler(authSvc),
			permissions: handler.NewPermissionHandler(permissionSvc),
			settings:    handler.NewSettingsHandler(settingsSvc),
			classes:     handler.NewClassHandler(classSvc),
			students:    handler.NewStudentHandler(studentSvc),
			users:       handler.NewUserHandler(userSvc),
			metrics:     handler.NewMetricsHandler(metrics, readinessChecks(db.PingContext, redisClient)),
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func readinessChecks(pingDB func(context.Context) error, redisClient *redis.Client) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(pingDB)}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	return checks
}
