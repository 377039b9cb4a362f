package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sotags/backend/internal/monitoring"
)

// HTTPMetrics HTTP 指标中间件
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			int64(size),
		)
		metrics.UpdateSystemMetrics()
	}
}
