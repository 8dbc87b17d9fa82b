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

	_ "github.com/noah-isme/sma-substitute-api/api/swagger"
	"github.com/noah-isme/sma-substitute-api/internal/handler"
	"github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	"github.com/noah-isme/sma-substitute-api/pkg/cache"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/database"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
	"github.com/noah-isme/sma-substitute-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

// @title SMA Substitute API
// @version 1.0.0
// @description Assigns substitute teachers to periods vacated by absent teachers.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	files, err := storage.NewLocalStorage(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	checks := map[string]handler.Check{}
	store, closeStore, err := openStore(ctx, cfg, files, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	loc, err := time.LoadLocation(cfg.Substitution.Timezone)
	if err != nil {
		logr.Warn("unknown timezone, using local time", zap.String("timezone", cfg.Substitution.Timezone), zap.Error(err))
		loc = time.Local
	}

	matcher := substitution.MatcherByName(cfg.Substitution.Matcher)
	engine := substitution.NewEngine(store, substitution.EngineConfig{
		WorkloadCap:    cfg.Substitution.WorkloadCap,
		MatchThreshold: cfg.Substitution.MatchThreshold,
		Matcher:        matcher,
		Selector: substitution.SelectorConfig{
			MaxFallbackTarget: cfg.Substitution.FallbackMaxTarget,
			MinFallbackGrade:  cfg.Substitution.FallbackMinGrade,
		},
		DefaultGradeLevel: cfg.Substitution.DefaultGradeLevel,
	}, logr.Named("engine"))

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	validate := validator.New()
	substitutions := service.NewSubstitutionService(engine, store, validate, logr.Named("substitutions"), service.SubstitutionServiceConfig{
		Cache:    cacheSvc,
		Metrics:  metrics,
		CacheTTL: cfg.Cache.TTL,
	})

	worker := service.NewRunWorker(substitutions, cfg.Runs.Retries, logr.Named("run-worker"))
	queue := jobs.NewQueue("substitution-runs", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Runs.Workers,
		MaxRetries: cfg.Runs.Retries,
		RetryDelay: cfg.Runs.RetryDelay,
		Logger:     logr,
		OnGiveUp: func(job jobs.Job, err error) {
			logr.Warn("substitution run gave up", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
		},
	})
	queue.Start(ctx)
	defer queue.Stop()
	substitutions.SetQueue(queue)

	if cfg.DailyRun.Enabled {
		scheduler := service.NewDailyRunScheduler(substitutions, cfg.DailyRun.Cron, loc, logr.Named("daily-run"))
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	attendance := service.NewAttendanceService(store, cacheSvc, validate, logr.Named("attendance"), service.AttendanceOptions{
		Matcher:   matcher,
		Threshold: cfg.Substitution.MatchThreshold,
	})
	exporter := service.NewExportService(store, files, logr.Named("export"), nil, nil)
	tokens := service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.DefaultConfig(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Substitutions: handler.NewSubstitutionHandler(substitutions, exporter),
		Attendance:    handler.NewAttendanceHandler(attendance),
		Metrics:       metricsHandler,
		Tokens:        tokens,
		Logger:        logr.Named("audit"),
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
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

// openStore selects the persistence backend and registers its readiness check.
func openStore(ctx context.Context, cfg *config.Config, files *storage.LocalStorage, checks map[string]handler.Check) (substitution.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["postgres"] = db.PingContext
		return store, func() { _ = db.Close() }, nil
	case config.StorageFile, "":
		checks["data_dir"] = func(context.Context) error {
			_, err := os.Stat(files.Path("."))
			return err
		}
		return repository.NewFileStore(files), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
