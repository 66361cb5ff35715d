package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"wisefido-census/internal/common/database"
	"wisefido-census/internal/common/logger"
	"wisefido-census/internal/common/mqtt"
	"wisefido-census/internal/common/redis"
	"wisefido-census/internal/config"
	httpapi "wisefido-census/internal/http"
	"wisefido-census/internal/metrics"
	"wisefido-census/internal/notify"
	"wisefido-census/internal/repository"
	"wisefido-census/internal/service"
	"wisefido-census/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-census")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := service.Dependencies{
		CacheTTL:          cfg.Census.RollupCacheTTL,
		RollupConcurrency: cfg.Census.RollupConcurrency,
		Metrics:           metrics.New(),
		Logger:            log,
	}

	// Store: Postgres when reachable, otherwise in-memory.
	var db *sql.DB
	if cfg.Store.Backend == config.StorePostgres {
		if d, err := database.NewPostgresDB(ctx, &cfg.Database); err != nil {
			log.Warn("Postgres unavailable, falling back to memory store", zap.Error(err))
		} else if err := repository.EnsureSchema(ctx, d); err != nil {
			log.Warn("Census schema bootstrap failed, falling back to memory store", zap.Error(err))
			_ = d.Close()
		} else {
			db = d
			log.Info("Postgres store enabled", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Database))
		}
	}
	if db != nil {
		deps.Records = repository.NewPostgresShiftRecordsRepository(db)
		deps.Summaries = repository.NewPostgresDailySummariesRepository(db)
		deps.Wards = repository.NewPostgresWardsRepository(db)
	} else {
		deps.Records = repository.NewMemoryShiftRecordsRepo()
		deps.Summaries = repository.NewMemoryDailySummariesRepo()
		deps.Wards = repository.NewMemoryWardsRepo(cfg.Census.Wards...)
		log.Info("Memory store enabled", zap.Int("wards", len(cfg.Census.Wards)))
	}
	if cfg.WardDirectory.URL != "" {
		deps.Wards = repository.NewHTTPWardsRepository(cfg.WardDirectory.URL, cfg.WardDirectory.Timeout, cfg.WardDirectory.Retries, cfg.WardDirectory.CacheTTL, log)
		log.Info("Remote ward directory enabled", zap.String("url", cfg.WardDirectory.URL))
	}

	// Redis: rollup cache and optional event stream.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		c := redis.NewRedisClient(&cfg.Redis.RedisConfig)
		if err := redis.Ping(ctx, c); err != nil {
			log.Warn("Redis unavailable, rollup cache disabled", zap.Error(err))
			_ = c.Close()
		} else {
			redisClient = c
			deps.Cache = store.NewRedisKV(c)
		}
	}

	var mqttClient *mqtt.Client
	switch cfg.Census.EventSink {
	case config.EventSinkRedis:
		if redisClient == nil {
			log.Warn("Event sink redis requested but Redis is unavailable, events disabled")
			break
		}
		deps.Publisher = notify.NewRedisStreamPublisher(redisClient, cfg.Census.EventStream, cfg.Census.EventStreamMaxLen)
	case config.EventSinkMQTT:
		c, err := mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, events disabled", zap.Error(err))
			break
		}
		mqttClient = c
		deps.Publisher = notify.NewMQTTPublisher(c, cfg.Census.EventTopicPrefix, cfg.Census.PublishTimeout)
	}
	log.Info("Census event sink", zap.String("sink", cfg.Census.EventSink), zap.Bool("active", deps.Publisher != nil))

	shifts := service.NewShiftService(deps)
	summaries := service.NewSummaryService(deps)

	router := httpapi.NewRouter(log)
	router.RegisterCensusRoutes(httpapi.NewCensusHandler(shifts, summaries, cfg.Census.ReviewerRoles, log))
	router.RegisterHealthRoutes()
	router.RegisterMetricsRoutes(deps.Metrics)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
