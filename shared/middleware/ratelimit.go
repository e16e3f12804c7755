package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/shared/utils"
)

// RateLimit counts requests per client IP. A nil limiter disables the check.
// Limiter failures let the request through.
func RateLimit(limiter *utils.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logrus.WithError(err).WithField("client_ip", c.ClientIP()).Warn("Rate limiter degraded, allowing request")
		}
		if !allowed {
			utils.AbortWithError(c, utils.RateLimitError("Too many requests"))
			return
		}

		c.Next()
	}
}
