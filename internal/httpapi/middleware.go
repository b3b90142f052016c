package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clientcomms/internal/observability"
)

const replayHeader = "X-Replay-Id"

func replayMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		replayID := c.GetHeader(replayHeader)
		if replayID == "" {
			replayID = observability.NewReplayID()
		}
		c.Request = c.Request.WithContext(observability.WithReplayID(c.Request.Context(), replayID))
		c.Header(replayHeader, replayID)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"replay_id", c.Writer.Header().Get(replayHeader),
		)
	}
}

func (s *Server) rateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, retry := s.limiter.Allow(c.ClientIP()); !ok {
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
