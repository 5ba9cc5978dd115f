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

	_ "github.com/noah-isme/scholarbridge-api/api/swagger"
	"github.com/noah-isme/scholarbridge-api/internal/handler"
	"github.com/noah-isme/scholarbridge-api/internal/livequery"
	"github.com/noah-isme/scholarbridge-api/internal/repository"
	"github.com/noah-isme/scholarbridge-api/internal/service"
	"github.com/noah-isme/scholarbridge-api/pkg/cache"
	"github.com/noah-isme/scholarbridge-api/pkg/config"
	"github.com/noah-isme/scholarbridge-api/pkg/database"
	"github.com/noah-isme/scholarbridge-api/pkg/jobs"
	"github.com/noah-isme/scholarbridge-api/pkg/logger"
	"github.com/noah-isme/scholarbridge-api/pkg/storage"
)

// @title ScholarBridge API
// @version 1.0.0
// @description Student activity records, certificates, goals and events, with a live channel at /live.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache and with in-process notifications", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	activities := repository.NewActivityRepository(db)
	certificates := repository.NewCertificateRepository(db)
	goals := repository.NewGoalRepository(db)
	events := repository.NewEventRepository(db)
	achievements := repository.NewAchievementRepository(db)
	documents := repository.NewDocumentStore(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ProfileTTL, logr, cfg.Cache.Enabled)
	profiles := service.NewProfileDirectory(users, cacheSvc, cfg.Cache.ProfileTTL, logr)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	notifier := newNotifier(cfg, redisClient, logr)
	hub := livequery.NewHub(documents, notifier, livequery.Config{
		FetchTimeout:  cfg.Live.FetchTimeout,
		RetryInterval: cfg.Live.RetryInterval,
		Observer:      metrics,
		Logger:        logr,
	})
	if err := hub.Start(ctx); err != nil {
		logr.Fatal("failed to start live query hub", zap.Error(err))
	}
	defer hub.Stop()

	local, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		logr.Fatal("failed to prepare storage", zap.Error(err))
	}
	blobs := storage.NewBlobs(local, storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL), cfg.APIPrefix+"/files")

	cleanup := jobs.NewQueue("blob-cleanup", jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		BufferSize: cfg.Cleanup.Buffer,
		MaxRetries: cfg.Cleanup.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	cleanup.Handle(service.JobBlobDelete, service.BlobCleanupHandler(blobs, metrics, logr))
	cleanup.Start(ctx)
	defer cleanup.Stop()

	policy := service.UploadPolicy{MaxBytes: cfg.Storage.MaxFileSizeBytes, AllowedMIMEs: cfg.Storage.AllowedMIMEs}

	activitySvc := service.NewActivityService(activities, validate, notifier, logr)
	goalSvc := service.NewGoalService(goals, validate, notifier, logr)
	eventSvc := service.NewEventService(events, validate, notifier, logr)
	certificateSvc := service.NewCertificateService(certificates, service.CertificateServiceConfig{
		Blobs:   blobs,
		Cleanup: cleanup,
		Metrics: metrics,
		Changes: notifier,
		Policy:  policy,
		Logger:  logr,
	})
	achievementSvc := service.NewAchievementService(achievements, service.AchievementServiceConfig{
		Blobs:     blobs,
		Cleanup:   cleanup,
		Metrics:   metrics,
		Changes:   notifier,
		Policy:    policy,
		Validator: validate,
		Logger:    logr,
	})
	exportSvc := service.NewExportService(activities, cfg.Export.MaxRows, logr)
	dashboardSvc := service.NewDashboardService(documents, logr)
	composer := service.NewViewComposer(hub, profiles, blobs, metrics, logr).WithURLRefresh(cfg.Storage.SignedURLTTL / 2)

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := newRouter(cfg, logr, routerDeps{
		auth:         handler.NewAuthHandler(authSvc, profiles),
		navigation:   handler.NewNavigationHandler(profiles, authSvc),
		activities:   handler.NewActivityHandler(activitySvc, exportSvc),
		certificates: handler.NewCertificateHandler(certificateSvc),
		goals:        handler.NewGoalHandler(goalSvc),
		events:       handler.NewEventHandler(eventSvc),
		achievements: handler.NewAchievementHandler(achievementSvc),
		dashboard:    handler.NewDashboardHandler(dashboardSvc),
		files:        handler.NewFileHandler(blobs, logr),
		health:       handler.NewHealthHandler(metrics.Handler(), checks),
		live: handler.NewLiveHandler(ctx, service.LiveSessionDeps{
			Auth:        authSvc,
			Provider:    authSvc,
			Profiles:    profiles,
			Composer:    composer,
			Observer:    metrics,
			Logger:      logr,
			FrameBuffer: cfg.Live.FrameBuffer,
		}, handler.LiveConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			WriteTimeout:   cfg.Live.WriteTimeout,
			PingInterval:   cfg.Live.PingInterval,
			ReadLimitBytes: cfg.Live.ReadLimitBytes,
		}),
		verifier: authSvc,
		audit:    users,
		metrics:  metrics,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// changeNotifier is both ends of the change feed: services publish and the
// hub listens.
type changeNotifier interface {
	livequery.Notifier
	service.ChangePublisher
}

func newNotifier(cfg *config.Config, client *redis.Client, logr *zap.Logger) changeNotifier {
	if cfg.Live.Notifier == config.NotifierRedis && client != nil {
		return livequery.NewRedisNotifier(client, cfg.Live.Channel, logr)
	}
	if cfg.Live.Notifier == config.NotifierRedis {
		logr.Warn("redis notifier requested but redis is unavailable, using in-process notifier")
	}
	return livequery.NewMemoryNotifier(256)
}
