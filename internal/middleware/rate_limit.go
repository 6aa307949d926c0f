package middleware

import (
	"net/http"
	"sync"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/Dhoini/stream-access-service/pkg/res"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimiterStore хранит лимитеры по ключу (ID пользователя или IP)
type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiterStore(limit rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = limiter
	}
	return limiter
}

// RateLimit ограничивает частоту запросов одного пользователя.
// perSecond <= 0 отключает ограничение.
func RateLimit(perSecond float64, burst int, log *logger.Logger) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if burst < 1 {
		burst = 1
	}

	store := newRateLimiterStore(rate.Limit(perSecond), burst)

	return func(c *gin.Context) {
		key := c.GetString(string(ContextUserIDKey))
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		if !store.getLimiter(key).Allow() {
			log.Warnw("Rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			res.JsonResponse(c.Writer, res.ErrorResponse{
				Error:     "rate limit exceeded",
				ErrorCode: "rate_limited",
			}, http.StatusTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
