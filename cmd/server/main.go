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
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sotags/backend/internal/cache"
	"sotags/backend/internal/config"
	"sotags/backend/internal/domain"
	"sotags/backend/internal/health"
	"sotags/backend/internal/logger"
	"sotags/backend/internal/monitoring"
	"sotags/backend/internal/service"
	"sotags/backend/internal/stackexchange"
	"sotags/backend/internal/storage"
	"sotags/backend/internal/storage/memory"
	"sotags/backend/internal/storage/postgres"
	redisstore "sotags/backend/internal/storage/redis"
	"sotags/backend/internal/task"
	httptransport "sotags/backend/internal/transport/http"
)

// main 启动标签代理 HTTP 服务及可选的定时刷新任务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting sotags server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化存储层
	store, err := initializeStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// 初始化缓存
	tagCache, redisClient, err := initializeCache(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize cache", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	var pinger health.Pinger
	if redisClient != nil {
		pinger = redisClient
	}
	healthChecker := health.NewHealthChecker(store, pinger, log)

	// 标签源客户端
	source := stackexchange.NewClient(
		stackexchange.NewHTTPClient(&cfg.Source),
		&cfg.Source,
		stackexchange.WithLogger(log),
		stackexchange.WithPageHook(metrics.RecordSourcePage),
	)

	tagService := service.NewTagService(store, source, tagCache, service.TagServiceConfig{
		CacheKey: cfg.Cache.Key,
		CacheOptions: cache.Options{
			Sliding:  cfg.Cache.Sliding,
			Absolute: cfg.Cache.Absolute,
		},
		MinRecords: cfg.Source.MinRecords,
	}, service.WithLogger(log), service.WithMetrics(metrics))

	// 定时刷新
	var scheduler *task.Scheduler
	if cfg.Refresh.Schedule != "" {
		scheduler = task.NewScheduler(log)
		job := task.NewRefreshTagsJob(tagService, 0, log)
		if err := scheduler.Register(cfg.Refresh.Schedule, job); err != nil {
			log.Fatal("failed to register refresh job", zap.Error(err))
		}
	}

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		TagService:    tagService,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 首次请求可能触发完整刷新
		WriteTimeout: cfg.Source.Timeout*time.Duration(max(cfg.Source.MaxPages, 1)) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 启动时刷新
	if cfg.Refresh.OnStartup {
		group.Go(func() error {
			count, err := tagService.Refresh(groupCtx)
			if err != nil {
				// 启动刷新失败不终止服务，首次列表请求会再次尝试
				log.Warn("startup refresh failed", zap.Error(err))
				return nil
			}
			log.Info("startup refresh completed", zap.Int("tags", count))
			return nil
		})
	}

	if scheduler != nil {
		scheduler.Start()
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop()
		}

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 按配置选择数据库或内存存储
func initializeStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	log.Info("initializing database storage", zap.String("database_type", cfg.Database.Type))

	store, err := postgres.Open(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Type, err)
	}

	log.Info("database storage initialized successfully",
		zap.String("database_type", cfg.Database.Type),
		zap.Int("batch_size", cfg.Database.BatchSize),
	)
	return store, nil
}

// initializeCache 按配置选择本地缓存或 Redis 共享缓存
//
// 使用 Redis 时同时返回客户端，供就绪检查和关闭使用。
func initializeCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.Cache, *redisstore.Client, error) {
	switch cfg.Cache.Driver {
	case "redis":
		client, err := redisstore.New(ctx, &cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis tag cache",
			zap.String("address", cfg.Redis.Address),
			zap.Duration("sliding", cfg.Cache.Sliding),
			zap.Duration("absolute", cfg.Cache.Absolute),
		)
		return redisstore.NewSnapshotCache[[]domain.TagView](client, "sotags:"), client, nil

	default:
		log.Info("using local tag cache",
			zap.Duration("sliding", cfg.Cache.Sliding),
			zap.Duration("absolute", cfg.Cache.Absolute),
		)
		return cache.NewLocalCache(time.Minute), nil, nil
	}
}
