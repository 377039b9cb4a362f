package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sotags/backend/internal/cache"
)

const opTimeout = 2 * time.Second

// SnapshotCache 基于 Redis 的共享缓存，供多实例部署共用同一份列表快照
//
// 值以 JSON 保存，绝对过期时间随值一起写入；每次命中用 PEXPIRE 重置滑动窗口，
// 但不会超过绝对期限。Redis 故障时按未命中处理。
type SnapshotCache[T any] struct {
	client *Client
	prefix string
}

// envelope Redis 中保存的条目
type envelope[T any] struct {
	Value      T     `json:"v"`
	SlidingMS  int64 `json:"sl,omitempty"`
	AbsoluteMS int64 `json:"abs,omitempty"` // 绝对过期的 Unix 毫秒时间戳
}

// NewSnapshotCache 创建共享缓存
//
// 参数:
//   - client: Redis 客户端
//   - prefix: 键前缀，用于与其他数据隔离
func NewSnapshotCache[T any](client *Client, prefix string) *SnapshotCache[T] {
	return &SnapshotCache[T]{client: client, prefix: prefix}
}

var _ cache.Cache = (*SnapshotCache[int])(nil)

// TryGet 读取缓存，命中时重置滑动过期
func (c *SnapshotCache[T]) TryGet(key string) (interface{}, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	k := c.prefix + key
	data, err := c.client.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.client.log.Warn("redis cache get failed", zap.String("key", k), zap.Error(err))
		}
		return nil, false
	}

	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		c.client.log.Warn("redis cache entry corrupted", zap.String("key", k), zap.Error(err))
		c.client.rdb.Del(ctx, k)
		return nil, false
	}

	var absoluteAt time.Time
	if env.AbsoluteMS > 0 {
		absoluteAt = time.UnixMilli(env.AbsoluteMS)
	}

	ttl, alive := cache.NextTTL(time.Duration(env.SlidingMS)*time.Millisecond, absoluteAt, time.Now())
	if !alive {
		c.client.rdb.Del(ctx, k)
		return nil, false
	}
	if ttl > 0 {
		if err := c.client.rdb.PExpire(ctx, k, ttl).Err(); err != nil {
			c.client.log.Warn("redis cache touch failed", zap.String("key", k), zap.Error(err))
		}
	}

	return env.Value, true
}

// Set 写入缓存
func (c *SnapshotCache[T]) Set(key string, value interface{}, opts cache.Options) {
	typed, ok := value.(T)
	if !ok {
		c.client.log.Error("redis cache value has unexpected type", zap.String("key", key))
		return
	}

	now := time.Now()
	env := envelope[T]{Value: typed, SlidingMS: opts.Sliding.Milliseconds()}

	var absoluteAt time.Time
	if opts.Absolute > 0 {
		absoluteAt = now.Add(opts.Absolute)
		env.AbsoluteMS = absoluteAt.UnixMilli()
	}

	data, err := json.Marshal(env)
	if err != nil {
		c.client.log.Error("redis cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	ttl, _ := cache.NextTTL(opts.Sliding, absoluteAt, now)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// ttl 为 0 时 go-redis 写入不过期的键
	if err := c.client.rdb.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.client.log.Warn("redis cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Remove 删除缓存
func (c *SnapshotCache[T]) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := c.client.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		c.client.log.Warn("redis cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
