package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Options 单个缓存条目的过期策略
//
// Sliding 与 Absolute 是两个独立的时钟，任意一个先到期即淘汰条目。
// 为 0 表示不启用该时钟；两者都为 0 时条目永不过期。
type Options struct {
	Sliding  time.Duration // 滑动过期：每次命中后重新计时
	Absolute time.Duration // 绝对过期：自写入起固定计时，读取不会延长
}

// DefaultOptions 标签列表使用的默认策略（滑动 45s，绝对 300s）
func DefaultOptions() Options {
	return Options{
		Sliding:  45 * time.Second,
		Absolute: 300 * time.Second,
	}
}

// Cache 进程内键值缓存
type Cache interface {
	TryGet(key string) (interface{}, bool)
	Set(key string, value interface{}, opts Options)
	Remove(key string)
}

// LocalCache 本地内存缓存（L1 缓存）
//
// 特点：
// - 底层使用 go-cache，自带并发安全与后台清理
// - 每个条目同时维护滑动过期与绝对过期
// - 不限制容量，只按时间淘汰
type LocalCache struct {
	items *gocache.Cache
	mu    sync.Mutex
}

type cacheEntry struct {
	value      interface{}
	sliding    time.Duration
	absoluteAt time.Time // 零值表示无绝对过期
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - cleanupInterval: 后台清理过期条目的间隔，<=0 时使用 1 分钟
func NewLocalCache(cleanupInterval time.Duration) *LocalCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &LocalCache{
		items: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// TryGet 获取缓存值，命中时重置滑动过期时间
func (c *LocalCache) TryGet(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	entry := raw.(*cacheEntry)

	ttl, alive := entry.nextTTL(time.Now())
	if !alive {
		c.items.Delete(key)
		return nil, false
	}

	// 续期：go-cache 的 Set 会用新的过期时间覆盖条目
	c.items.Set(key, entry, ttl)
	return entry.value, true
}

// Set 设置缓存值
func (c *LocalCache) Set(key string, value interface{}, opts Options) {
	now := time.Now()
	entry := &cacheEntry{
		value:   value,
		sliding: opts.Sliding,
	}
	if opts.Absolute > 0 {
		entry.absoluteAt = now.Add(opts.Absolute)
	}

	ttl, _ := entry.nextTTL(now)

	c.mu.Lock()
	c.items.Set(key, entry, ttl)
	c.mu.Unlock()
}

// Remove 删除缓存值
func (c *LocalCache) Remove(key string) {
	c.mu.Lock()
	c.items.Delete(key)
	c.mu.Unlock()
}

// Clear 清空所有缓存
func (c *LocalCache) Clear() {
	c.mu.Lock()
	c.items.Flush()
	c.mu.Unlock()
}

// Len 返回当前条目数（可能包含尚未被清理的过期条目）
func (c *LocalCache) Len() int {
	return c.items.ItemCount()
}

// nextTTL 计算从 now 起条目还能存活多久
func (e *cacheEntry) nextTTL(now time.Time) (time.Duration, bool) {
	ttl, alive := NextTTL(e.sliding, e.absoluteAt, now)
	if alive && ttl == 0 {
		return gocache.NoExpiration, true
	}
	return ttl, alive
}

// NextTTL 计算条目从 now 起还能存活多久
//
// 结果取滑动窗口与绝对剩余时间中的较小者；absoluteAt 为零值表示无绝对过期。
// alive 为 false 表示已过绝对期限；返回 0 且 alive 为 true 表示永不过期。
func NextTTL(sliding time.Duration, absoluteAt, now time.Time) (time.Duration, bool) {
	if absoluteAt.IsZero() {
		if sliding > 0 {
			return sliding, true
		}
		return 0, true
	}

	remaining := absoluteAt.Sub(now)
	if remaining <= 0 {
		return 0, false
	}
	if sliding > 0 && sliding < remaining {
		return sliding, true
	}
	return remaining, true
}
