package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache_Basic(t *testing.T) {
	c := NewLocalCache(time.Minute)

	t.Run("未命中", func(t *testing.T) {
		_, ok := c.TryGet("missing")
		assert.False(t, ok)
	})

	t.Run("写入后命中", func(t *testing.T) {
		c.Set("k", []string{"a", "b"}, DefaultOptions())
		v, ok := c.TryGet("k")
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, v)
	})

	t.Run("删除后未命中", func(t *testing.T) {
		c.Remove("k")
		_, ok := c.TryGet("k")
		assert.False(t, ok)
	})

	t.Run("删除不存在的键是安全的", func(t *testing.T) {
		assert.NotPanics(t, func() { c.Remove("nope") })
	})

	t.Run("覆盖写入", func(t *testing.T) {
		c.Set("k", 1, DefaultOptions())
		c.Set("k", 2, DefaultOptions())
		v, ok := c.TryGet("k")
		require.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("清空", func(t *testing.T) {
		c.Clear()
		assert.Equal(t, 0, c.Len())
	})
}

func TestLocalCache_SlidingExpiration(t *testing.T) {
	c := NewLocalCache(time.Minute)
	c.Set("k", "v", Options{Sliding: 100 * time.Millisecond, Absolute: 10 * time.Second})

	// 持续读取会延长条目寿命
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		_, ok := c.TryGet("k")
		require.True(t, ok, "read %d should hit", i)
	}

	// 空闲超过滑动窗口后淘汰
	time.Sleep(250 * time.Millisecond)
	_, ok := c.TryGet("k")
	assert.False(t, ok)
}

func TestLocalCache_AbsoluteCapsContinuousReads(t *testing.T) {
	c := NewLocalCache(time.Minute)
	c.Set("k", "v", Options{Sliding: 100 * time.Millisecond, Absolute: 200 * time.Millisecond})

	deadline := time.Now().Add(200 * time.Millisecond)
	evicted := false
	for time.Now().Before(deadline.Add(300 * time.Millisecond)) {
		if _, ok := c.TryGet("k"); !ok {
			evicted = true
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.True(t, evicted, "absolute expiration must evict even under continuous reads")
	assert.False(t, time.Now().Before(deadline.Add(-20*time.Millisecond)), "evicted too early")
}

func TestLocalCache_NoExpiration(t *testing.T) {
	c := NewLocalCache(time.Minute)
	c.Set("k", "v", Options{})

	time.Sleep(20 * time.Millisecond)
	v, ok := c.TryGet("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCacheEntry_NextTTL(t *testing.T) {
	now := time.Now()

	t.Run("取滑动与剩余绝对时间的较小值", func(t *testing.T) {
		e := &cacheEntry{sliding: 45 * time.Second, absoluteAt: now.Add(300 * time.Second)}
		ttl, alive := e.nextTTL(now)
		assert.True(t, alive)
		assert.Equal(t, 45*time.Second, ttl)

		ttl, alive = e.nextTTL(now.Add(280 * time.Second))
		assert.True(t, alive)
		assert.Equal(t, 20*time.Second, ttl)
	})

	t.Run("超过绝对期限", func(t *testing.T) {
		e := &cacheEntry{sliding: 45 * time.Second, absoluteAt: now}
		_, alive := e.nextTTL(now.Add(time.Millisecond))
		assert.False(t, alive)
	})

	t.Run("仅绝对过期", func(t *testing.T) {
		e := &cacheEntry{absoluteAt: now.Add(time.Minute)}
		ttl, alive := e.nextTTL(now)
		assert.True(t, alive)
		assert.Equal(t, time.Minute, ttl)
	})
}
