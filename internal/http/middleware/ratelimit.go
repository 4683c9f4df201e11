// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the edge rate-limit gate. Every request entering the
// admin API is classified, attributed to an identity, and checked against the
// category budget before any handler runs. Selected hot routes run a second,
// independently-scoped gate inside their handlers; the two layers use
// distinct counter namespaces and degrade independently.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nkoutso/festpass-admin/internal/ratelimit"
)

// Rate-limit response headers. Stamped on every response passing the gate,
// allowed or not, so clients can pace themselves before hitting the wall.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit returns the edge gate middleware. Rejections are answered with
// the standard error envelope and HTTP 429; allowed requests proceed with
// budget headers attached.
//
// The layer name labels the decision metric; it must match the namespace the
// gate's limiter was built with.
func RateLimit(gate *ratelimit.Gate, layer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := gate.Evaluate(c.Request)

		c.Header(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
		ObserveRateLimit(layer, d.Category, d.Allowed)

		if !d.Allowed {
			c.Header(HeaderRetryAfter, strconv.Itoa(d.RetryAfterSeconds))
			rid := c.Writer.Header().Get(requestIDHeader)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id": rid,
				"code":       "too_many_requests",
				"message":    "rate limit exceeded for " + d.Category + " requests",
			})
			return
		}
		c.Next()
	}
}

// Throttle applies a raw fixed-window budget to a single route. It backs
// machine-facing endpoints (the gateway webhook callback) where the category
// taxonomy does not apply; unlike the gate, its limiter keeps a local
// per-instance ceiling during counter-store outages.
func Throttle(l *ratelimit.SimpleLimiter, name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		res := l.Allow(c.Request.Context(), ratelimit.IdentityFromRequest(c.Request), limit, window)

		c.Header(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
		ObserveRateLimit("throttle", name, res.Allowed)

		if !res.Allowed {
			retry := int(res.ResetAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header(HeaderRetryAfter, strconv.Itoa(retry))
			rid := c.Writer.Header().Get(requestIDHeader)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id": rid,
				"code":       "too_many_requests",
				"message":    "rate limit exceeded for " + name + " requests",
			})
			return
		}
		c.Next()
	}
}
