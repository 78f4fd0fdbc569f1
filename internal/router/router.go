package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/implanttrace/healthbridge/internal/handler"
	"github.com/implanttrace/healthbridge/internal/middleware"
	"github.com/implanttrace/healthbridge/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine  *gin.Engine
	recordH Handler
	h       *handler.Handler
	metrics *metrics.Metrics
	config  Config
}

func NewRouter(recordH Handler, h *handler.Handler, m *metrics.Metrics, config Config) *Router {
	gin.SetMode(gin.ReleaseMode)

	if config.RateLimit <= 0 {
		config.RateLimit = 50
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 100
	}

	return &Router{
		engine:  gin.New(),
		recordH: recordH,
		h:       h,
		metrics: m,
		config:  config,
	}
}

func (r *Router) Setup() {
	limiter := middleware.NewRateLimiter(r.config.RateLimit, r.config.RateBurst)

	r.engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		limiter.RateLimit(),
	)

	r.engine.GET("/health", r.h.HealthCheck)
	if r.metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := r.engine.Group("/api/v1")
	r.recordH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
