package middleware

import (
	"time"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RequestLogger логирует каждый HTTP-запрос. Query не пишется: в нем приходит session_id.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []interface{}{
			"status_code", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if userID := c.GetString(string(ContextUserIDKey)); userID != "" {
			fields = append(fields, "userID", userID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		if c.Writer.Status() >= 500 {
			log.Errorw("Request handled", fields...)
			return
		}
		log.Infow("Request handled", fields...)
	}
}
