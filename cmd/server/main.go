package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/quicktrends/couponfunnel/config"
	"github.com/quicktrends/couponfunnel/internal/app/model"
	"github.com/quicktrends/couponfunnel/internal/app/repository"
	appserver "github.com/quicktrends/couponfunnel/internal/app/server"
	"github.com/quicktrends/couponfunnel/internal/app/service"
	"github.com/quicktrends/couponfunnel/internal/infra/logger"
	infraNATS "github.com/quicktrends/couponfunnel/internal/infra/nats"
	infraPostgres "github.com/quicktrends/couponfunnel/internal/infra/postgres"
	infraPrometheus "github.com/quicktrends/couponfunnel/internal/infra/prometheus"
	infraRedis "github.com/quicktrends/couponfunnel/internal/infra/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	if cfg.Funnel.IPHashSalt == "" && !isDev {
		log.Fatal("funnel.ip_hash_salt must be configured in production")
	}

	log.Info("Configuration loaded successfully",
		zap.String("feed_path", cfg.Feed.Path),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("analytics_dir", cfg.Analytics.Dir),
		zap.Strings("allowed_domains", cfg.Funnel.AllowedDomains),
		zap.Bool("nats_mirror", cfg.Analytics.MirrorToNATS),
	)

	clock := service.SystemClock()
	feedRepo := repository.NewFileFeedRepository(cfg.Feed.Path, log)

	// Redis powers rate limiting and, optionally, the recommendation cache.
	// The funnel runs without it in degraded mode.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, continuing without rate limiting", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info("Connected to Redis successfully")
		}
	}

	var cache repository.CacheStore
	if cfg.Cache.Backend == "redis" && redisClient != nil {
		cache = repository.NewRedisCacheStore(redisClient, cfg.CacheTTL())
	} else {
		cache = repository.NewFileCacheStore(cfg.Cache.Path)
	}

	var mirror *service.ClickPublisher
	if cfg.Analytics.MirrorToNATS {
		natsConn, js, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Warn("NATS unavailable, click mirror disabled", zap.Error(err))
		} else {
			defer natsConn.Drain()
			mirror = service.NewClickPublisher(js)
			log.Info("Connected to NATS successfully")

			startWarehouse(ctx, cfg, log, js)
		}
	}

	events := service.NewFileEventLogger(service.FileEventLoggerDeps{
		Dir:           cfg.Analytics.Dir,
		RotateBytes:   cfg.Analytics.RotateBytes,
		RetentionDays: cfg.Analytics.RetentionDays,
		Clock:         clock,
		Logger:        log,
		Mirror:        mirror,
	})

	activity := service.NewActivityEvaluator(clock)
	recommender := service.NewRecommender(service.RecommenderDeps{
		Feed:     feedRepo,
		Cache:    cache,
		Activity: activity,
		Clock:    clock,
		TTL:      cfg.CacheTTL(),
		Logger:   log,
	})

	funnel := service.NewFunnelService(service.FunnelDeps{
		Feed:           feedRepo,
		Activity:       activity,
		Recommender:    recommender,
		Events:         events,
		AllowedDomains: cfg.Funnel.AllowedDomains,
		IPHashSalt:     cfg.Funnel.IPHashSalt,
		Clock:          clock,
		Logger:         log,
	})

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	srv := appserver.New(appserver.Dependencies{
		Logger:           log,
		Funnel:           funnel,
		Redis:            redisClient,
		RateLimitPerHour: cfg.Funnel.RateLimitPerHour,
	})

	if err := srv.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}

// startWarehouse connects the Postgres click warehouse and begins draining
// the JetStream mirror into it. Warehouse trouble never blocks the funnel.
func startWarehouse(ctx context.Context, cfg *config.Config, log *zap.Logger, js nats.JetStreamContext) {
	if cfg.Postgres.Host == "" {
		log.Info("Postgres not configured, click warehouse disabled")
		return
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Warn("Postgres unavailable, click warehouse disabled", zap.Error(err))
		return
	}
	pool.Close()

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Warn("Failed to open GORM connection, click warehouse disabled", zap.Error(err))
		return
	}

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &model.ClickEvent{}); err != nil {
		log.Warn("Failed to migrate click warehouse schema", zap.Error(err))
		return
	}

	consumer := service.NewClickConsumer(js, log, repository.NewClickEventRepository(gormDB))
	if err := consumer.Start(); err != nil {
		log.Warn("Failed to start click consumer", zap.Error(err))
		return
	}

	log.Info("Click warehouse consumer started")
}
