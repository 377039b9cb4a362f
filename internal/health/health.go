package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"sotags/backend/internal/logger"
	"sotags/backend/internal/storage"
)

const (
	checkTimeout       = 3 * time.Second
	maxGoroutines      = 2000
	componentStore     = "database"
	componentRedis     = "redis"
	componentGoroutine = "goroutines"
)

// Pinger 可探测连通性的外部依赖（如 Redis）
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	redis  Pinger
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
//
// redis 可为 nil，表示未启用共享缓存。
func NewHealthChecker(store storage.Store, redis Pinger, log *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		redis:  redis,
		logger: logger.OrNop(log),
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck(componentGoroutine, healthcheck.GoroutineCountCheck(maxGoroutines))
	hc.health.AddLivenessCheck(componentStore, hc.store.Health)

	hc.health.AddReadinessCheck(componentStore, hc.store.Health)
	if hc.redis != nil {
		hc.health.AddReadinessCheck(componentRedis, RedisHealthCheck(hc.redis))
	}
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveHandler 存活探针
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪探针
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行一次汇总检查，返回各组件状态
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		hc.logger.Warn("database health check failed", zap.Error(err))
		results[componentStore] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results[componentStore] = "OK"
	}

	if hc.redis != nil {
		if err := RedisHealthCheck(hc.redis)(); err != nil {
			hc.logger.Warn("redis health check failed", zap.Error(err))
			results[componentRedis] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results[componentRedis] = "OK"
		}
	} else {
		results[componentRedis] = "NOT_AVAILABLE"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}

// Healthy 汇总结果中是否全部正常
func Healthy(results map[string]string) bool {
	for k, v := range results {
		if k == "timestamp" {
			continue
		}
		if v != "OK" && v != "NOT_AVAILABLE" {
			return false
		}
	}
	return true
}

// RedisHealthCheck Redis 健康检查
func RedisHealthCheck(p Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		return p.Ping(ctx)
	}
}
