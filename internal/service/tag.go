package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sotags/backend/internal/cache"
	"sotags/backend/internal/domain"
	"sotags/backend/internal/logger"
	"sotags/backend/internal/monitoring"
)

const (
	refreshFlightKey = "refresh"
	listFlightKey    = "list"

	// refreshTimeout 合并后的刷新与发起方的请求解耦，单独限时
	refreshTimeout = 5 * time.Minute
)

// TagSource 外部标签源
type TagSource interface {
	FetchTags(ctx context.Context, target int) ([]domain.Tag, error)
}

// TagServiceConfig 标签服务配置
type TagServiceConfig struct {
	CacheKey     string        // 列表缓存键
	CacheOptions cache.Options // 列表缓存过期策略
	MinRecords   int           // 每次刷新的目标条数
}

// TagService 标签服务
//
// 负责刷新快照与生成带百分比的列表。并发的刷新、并发的缓存未命中各自合并为一次执行。
type TagService struct {
	store   domain.TagRepository
	source  TagSource
	cache   cache.Cache
	cfg     TagServiceConfig
	metrics *monitoring.Metrics
	logger  *zap.Logger
	flight  singleflight.Group
}

// Option 配置标签服务
type Option func(*TagService)

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(s *TagService) {
		s.logger = logger.OrNop(log)
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *TagService) {
		s.metrics = m
	}
}

// NewTagService 创建标签服务
func NewTagService(store domain.TagRepository, source TagSource, c cache.Cache, cfg TagServiceConfig, opts ...Option) *TagService {
	if cfg.CacheKey == "" {
		cfg.CacheKey = "AllTags"
	}
	if cfg.MinRecords <= 0 {
		cfg.MinRecords = 1000
	}

	s := &TagService{
		store:  store,
		source: source,
		cache:  c,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh 从外部源拉取标签并整体替换存储中的快照
//
// 拉取失败时存储和缓存都不变。成功后清除列表缓存，返回写入的条数。
// 并发调用共享同一次执行的结果。
func (s *TagService) Refresh(ctx context.Context) (int, error) {
	v, err, shared := s.flight.Do(refreshFlightKey, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(ctx)
	})
	if shared {
		s.logger.Debug("refresh coalesced with in-flight call")
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *TagService) refresh(ctx context.Context) (int, error) {
	start := time.Now()

	tags, err := s.source.FetchTags(ctx, s.cfg.MinRecords)
	if err != nil {
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
		}
		s.logger.Error("tag refresh failed: fetch", zap.Error(err))
		s.recordRefresh(start, 0, err)
		return 0, err
	}

	if err := s.store.ReplaceTags(ctx, tags); err != nil {
		err = storageError("replace tags", err)
		s.logger.Error("tag refresh failed: store", zap.Int("tags", len(tags)), zap.Error(err))
		s.recordRefresh(start, 0, err)
		return 0, err
	}

	s.cache.Remove(s.cfg.CacheKey)

	s.logger.Info("tag snapshot refreshed",
		zap.Int("tags", len(tags)),
		zap.Duration("duration", time.Since(start)),
	)
	s.recordRefresh(start, len(tags), nil)
	return len(tags), nil
}

// List 返回按参数排序的标签列表
//
// 未命中缓存时从存储计算百分比并写入缓存；存储为空时先刷新一次。
// 返回的切片是副本，调用方可以任意修改。
func (s *TagService) List(ctx context.Context, params domain.ListParams) ([]domain.TagView, error) {
	if views, ok := s.cachedViews(); ok {
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		return domain.SortTagViews(views, params), nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}

	v, err, _ := s.flight.Do(listFlightKey, func() (interface{}, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return domain.SortTagViews(v.([]domain.TagView), params), nil
}

// GetTag 按 ID 查找存储中的标签
func (s *TagService) GetTag(ctx context.Context, id uint) (*domain.Tag, error) {
	tag, err := s.store.GetTag(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTagNotFound) {
			return nil, err
		}
		return nil, storageError("get tag", err)
	}
	return tag, nil
}

// load 从存储生成列表并写入缓存
func (s *TagService) load(ctx context.Context) ([]domain.TagView, error) {
	// 前一个合并调用可能刚写完缓存
	if views, ok := s.cachedViews(); ok {
		return views, nil
	}

	count, err := s.store.CountTags(ctx)
	if err != nil {
		return nil, storageError("count tags", err)
	}
	if count == 0 {
		s.logger.Info("tag store is empty, refreshing from source")
		if _, err := s.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, storageError("list tags", err)
	}

	views := domain.BuildTagViews(tags)
	s.cache.Set(s.cfg.CacheKey, views, s.cfg.CacheOptions)
	return views, nil
}

func (s *TagService) cachedViews() ([]domain.TagView, bool) {
	v, ok := s.cache.TryGet(s.cfg.CacheKey)
	if !ok {
		return nil, false
	}
	views, ok := v.([]domain.TagView)
	if !ok {
		s.logger.Warn("unexpected value in tag cache, dropping", zap.String("key", s.cfg.CacheKey))
		s.cache.Remove(s.cfg.CacheKey)
		return nil, false
	}
	return views, true
}

func (s *TagService) recordRefresh(start time.Time, stored int, err error) {
	if s.metrics != nil {
		s.metrics.RecordRefresh(time.Since(start), stored, err)
	}
}

// storageError 统一包装为 ErrStorageUnavailable
func storageError(op string, err error) error {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
