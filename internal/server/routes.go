package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	// requestsTotal counts HTTP requests.
	//
	// Labels:
	//   - route: the matched route template, "unmatched" otherwise
	//   - status: HTTP status code
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contractbot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		},
		[]string{"route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contractbot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// RegisterRoutes mounts the dialogue API under rg.
//
// Endpoints:
//
//	POST   /turn                   process an utterance in a session
//	POST   /classify               stateless classification
//	POST   /extract                stateless entity extraction
//	POST   /sessions/:id/choices   offer a numbered choice list
//	DELETE /sessions/:id           end a session
//	GET    /sessions/:id/history   turn history
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/turn", h.HandleTurn)
	rg.POST("/classify", h.HandleClassify)
	rg.POST("/extract", h.HandleExtract)

	sessions := rg.Group("/sessions")
	{
		sessions.POST("/:id/choices", h.HandleOfferChoices)
		sessions.DELETE("/:id", h.HandleEndSession)
		sessions.GET("/:id/history", h.HandleHistory)
	}
}

// NewRouter builds the full engine: recovery, tracing, metrics, the v1 API,
// /health and /metrics.
func NewRouter(h *Handlers, serviceName string, accessLog bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(metricsMiddleware())
	if accessLog {
		router.Use(gin.Logger())
	}

	router.GET("/health", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, h)
	return router
}
