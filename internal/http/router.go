// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// rate limiting, CORS, and security headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Two independent rate-limit layers: the edge gate runs as middleware
//     here, and hot handlers run their own route-scoped gate internally
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/nkoutso/festpass-admin/internal/config"
	"github.com/nkoutso/festpass-admin/internal/gateway"
	"github.com/nkoutso/festpass-admin/internal/http/handlers"
	"github.com/nkoutso/festpass-admin/internal/http/middleware"
	"github.com/nkoutso/festpass-admin/internal/notify"
	"github.com/nkoutso/festpass-admin/internal/ratelimit"
	"github.com/nkoutso/festpass-admin/internal/services"
)

// Rate-limit layer names. Each layer keys its own counter namespace; sharing
// one would double-count every request and halve the effective budgets.
const (
	layerEdge  = "edge"
	layerRoute = "route"
)

// Raw budget for the gateway webhook callback. The caller is a machine, so
// the category taxonomy does not apply; the SimpleLimiter keeps a local
// ceiling on this route even while the counter store is down.
const (
	webhookThrottleLimit  = 60
	webhookThrottleWindow = time.Minute
)


// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. The counter store may be nil (rate limiting disabled, all requests
// allowed); the gateway client must not be.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Edge rate-limit gate (before any handler work)
//  8. Response compression
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gw *gateway.Client, store ratelimit.CounterStore, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Internal-Service",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Edge rate-limit gate
	edgeGate := ratelimit.NewGate(ratelimit.NewLimiter(store, layerEdge, cfg.Redis.Timeout))
	r.Use(middleware.RateLimit(edgeGate, layerEdge))

	// 8) Compress list and export responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/gateway
	orderSvc := &services.OrderService{DB: db, Gateway: gw}
	reconcileSvc := &services.ReconcileService{
		DB:      db,
		Gateway: gw,
		Mailer:  notify.LogMailer{Log: log.Logger},
		Emails:  services.NoDirectory{},
		Log:     log.Logger,
	}
	passSvc := &services.PassService{DB: db}
	webhookSvc := &services.WebhookService{DB: db}

	routeGate := ratelimit.NewGate(ratelimit.NewLimiter(store, layerRoute, cfg.Redis.Timeout))
	h := handlers.New(orderSvc, reconcileSvc, passSvc, webhookSvc, routeGate, cfg.Webhook.Secret, cfg.InternalServiceToken)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Orders and payments
		api.POST("/orders", h.CreateOrder)
		api.POST("/payments/verify", h.VerifyPayment)
		api.GET("/payments", h.ListPayments)

		// Gateway callbacks
		webhookThrottle := middleware.Throttle(
			ratelimit.NewSimpleLimiter(store, cfg.Redis.Timeout),
			"webhook", webhookThrottleLimit, webhookThrottleWindow,
		)
		api.POST("/webhooks/payment", webhookThrottle, h.PaymentWebhook)

		// Passes
		api.GET("/passes/:id", h.GetPass)
		api.POST("/passes/:id/redeem", h.RedeemPass)
		api.POST("/passes/scan", h.ScanPass)

		// Admin
		api.GET("/admin/dashboard", h.Dashboard)
		api.POST("/admin/onspot", h.RecordOnspot)
		api.PUT("/admin/payments/:orderID/status", h.OverrideStatus)
		api.POST("/admin/passes/:id/revert", h.RevertPass)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
