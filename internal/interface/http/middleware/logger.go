package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Logger 请求日志中间件
//
// 教学要点：
// 1. 记录每个请求的基本信息（方法、路径、耗时、状态码）
// 2. 生成唯一的请求ID，便于排查问题
// 3. 结构化日志输出
//
// DO（正确做法）：
// - 记录请求ID，方便排查问题
// - 记录耗时，发现慢请求
//
// DON'T（错误做法）：
// - 记录敏感信息（密码、Token）
// - 记录完整的请求体（可能很大，影响性能）
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 步骤1: 生成请求ID
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		// 步骤2: 记录开始时间
		start := time.Now()

		// 步骤3: 处理请求
		c.Next()

		// 步骤4: 记录请求信息
		latency := time.Since(start)

		var errMsg string
		if len(c.Errors) > 0 {
			errMsg = c.Errors.String()
		}

		fmt.Printf("[GIN] %s | %3d | %13v | %15s | %-7s %s %s\n",
			time.Now().Format("2006/01/02 - 15:04:05"),
			c.Writer.Status(),
			latency,
			c.ClientIP(),
			c.Request.Method,
			c.Request.URL.Path,
			errMsg,
		)

		// 慢请求警告：借还走行锁事务，锁竞争严重时会在这里暴露
		if latency > 3*time.Second {
			fmt.Printf("[WARN] Slow request: %s %s took %v\n",
				c.Request.Method, c.Request.URL.Path, latency)
		}
	}
}
