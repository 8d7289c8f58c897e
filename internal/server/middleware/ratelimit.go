// Package middleware implements the admission pipeline stages that guard
// every RPC route: per-IP throttling first, then signature authentication.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comnet/modserve/common/apiutil"
	"github.com/comnet/modserve/internal/ratelimit"
	"github.com/comnet/modserve/pkg/metrics"
)

// RateLimitRemainingHeader reports leftover quota on throttled responses so
// clients can back off.
const RateLimitRemainingHeader = "X-RateLimit-Remaining"

// IPThrottle rejects callers that exceed their per-IP token bucket. A denied
// request is answered with 400 and the remaining quota; nothing further in
// the chain runs. Requests with no determinable client address are malformed
// and rejected outright.
func IPThrottle(logger *zap.Logger, limiter ratelimit.KeyLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			apiutil.WriteError(c, http.StatusBadRequest, "request is invalid")
			return
		}

		if !limiter.Allow(ip) {
			metrics.RequestsThrottled.Inc()
			logger.Debug("request throttled", zap.String("client_ip", ip))
			c.Header(RateLimitRemainingHeader, strconv.Itoa(limiter.Remaining(ip)))
			apiutil.WriteError(c, http.StatusBadRequest, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
