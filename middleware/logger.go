package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ZapLogger 替代 gin.Logger，请求日志走 zap
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if op, ok := c.Get("operator"); ok {
			fields = append(fields, zap.Any("operator", op))
		}
		if c.Writer.Status() >= 500 {
			log.Error("请求", fields...)
			return
		}
		log.Debug("请求", fields...)
	}
}
