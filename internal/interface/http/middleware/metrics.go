package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/library/pkg/metrics"
)

// Metrics Prometheus指标采集中间件
// 教学要点：
// 1. 路径标签用c.FullPath()(路由模板，如/api/v1/borrowings/:id),
//    绝不用c.Request.URL.Path，每个ID一个标签值会把基数撑爆
// 2. 未匹配到路由(404)时FullPath为空，归入"unmatched"
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncGauge(metrics.HTTPRequestsInProgress)

		c.Next()

		metrics.DecGauge(metrics.HTTPRequestsInProgress)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := map[string]string{
			"method": c.Request.Method,
			"path":   path,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		metrics.IncCounterVec(metrics.HTTPRequestsTotal, labels)
		metrics.ObserveHistogramVec(metrics.HTTPRequestDuration,
			map[string]string{"method": c.Request.Method, "path": path},
			time.Since(start).Seconds())
	}
}
