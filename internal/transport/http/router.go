package httptransport

import (
	"context"
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sotags/backend/internal/config"
	"sotags/backend/internal/domain"
	"sotags/backend/internal/health"
	"sotags/backend/internal/middleware"
	"sotags/backend/internal/monitoring"
)

// TagService 处理器依赖的标签服务
type TagService interface {
	List(ctx context.Context, params domain.ListParams) ([]domain.TagView, error)
	Refresh(ctx context.Context) (int, error)
	GetTag(ctx context.Context, id uint) (*domain.Tag, error)
}

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	tags TagService
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	TagService    TagService
	HealthChecker *health.HealthChecker // 可选
	Metrics       *monitoring.Metrics   // 可选
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	var onPanic func()
	if deps.Metrics != nil {
		onPanic = deps.Metrics.RecordPanic
	}

	router.Use(middleware.RecoveryHandler(deps.Logger, onPanic))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	allowAll := len(corsConfig.AllowOrigins) == 0
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	if allowAll {
		corsConfig.AllowCredentials = false
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{tags: deps.TagService}

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		if deps.HealthChecker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		results := deps.HealthChecker.CheckHealth()
		if !health.Healthy(results) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
	})
	if deps.HealthChecker != nil {
		router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyHandler()))
	}

	// Prometheus 指标端点
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		tagRoutes := v1.Group("/tags")
		{
			tagRoutes.GET("", handler.listTags)        // 标签列表
			tagRoutes.GET("/fetch", handler.fetchTags) // 从标签源刷新
			tagRoutes.GET("/:id", handler.getTag)      // 获取单个标签
		}
	}

	return router
}
