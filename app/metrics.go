package app

import (
	"strconv"
	"time"

	"Gin_postgres_redis_tool_lending/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 按路由模板记请求数和耗时；未匹配的路由统一记成 "unmatched"
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
