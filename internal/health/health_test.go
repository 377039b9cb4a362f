package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"sotags/backend/internal/storage/memory"
)

type failingStore struct {
	*memory.Store
}

func (failingStore) Health() error { return errors.New("connection refused") }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthChecker(t *testing.T) {
	t.Run("全部正常", func(t *testing.T) {
		hc := NewHealthChecker(memory.NewStore(), stubPinger{}, nil)

		results := hc.CheckHealth()
		assert.Equal(t, "OK", results["database"])
		assert.Equal(t, "OK", results["redis"])
		assert.True(t, Healthy(results))

		rec := httptest.NewRecorder()
		hc.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		hc.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("未启用 Redis", func(t *testing.T) {
		hc := NewHealthChecker(memory.NewStore(), nil, nil)

		results := hc.CheckHealth()
		assert.Equal(t, "NOT_AVAILABLE", results["redis"])
		assert.True(t, Healthy(results))
	})

	t.Run("Redis 不可用时未就绪", func(t *testing.T) {
		hc := NewHealthChecker(memory.NewStore(), stubPinger{err: errors.New("timeout")}, nil)

		results := hc.CheckHealth()
		assert.Contains(t, results["redis"], "ERROR")
		assert.False(t, Healthy(results))

		rec := httptest.NewRecorder()
		hc.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("数据库不可用", func(t *testing.T) {
		hc := NewHealthChecker(failingStore{memory.NewStore()}, nil, nil)

		assert.False(t, Healthy(hc.CheckHealth()))

		rec := httptest.NewRecorder()
		hc.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
