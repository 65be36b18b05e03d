package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/labreport/internal/middleware"
	"github.com/jwalitptl/labreport/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	config    RouterConfig
	reportH   Handler
	catalogH  Handler
	sequenceH Handler
	healthH   Handler
	metricsH  gin.HandlerFunc
}

type RouterConfig struct {
	Mode         string
	RateLimit    rate.Limit
	RateBurst    int
	RateEnabled  bool
	CORSConfig   middleware.CORSConfig
	SizeLimit    middleware.SizeLimitConfig
	Timeout      middleware.TimeoutConfig
	MetricsPath  string
	Metrics      *metrics.Metrics
	TrustedProxy []string
}

func NewRouter(
	reportH Handler,
	catalogH Handler,
	sequenceH Handler,
	healthH Handler,
	metricsH gin.HandlerFunc,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()
	_ = engine.SetTrustedProxies(config.TrustedProxy)

	r := &Router{
		engine:    engine,
		config:    config,
		reportH:   reportH,
		catalogH:  catalogH,
		sequenceH: sequenceH,
		healthH:   healthH,
		metricsH:  metricsH,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if config.Metrics != nil {
		engine.Use(middleware.Metrics(config.Metrics))
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.SizeLimit),
		middleware.Timeout(config.Timeout),
	)

	if config.RateEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupHealthCheck(api)

	// Only the catalog may be cached; everything else is patient data
	public := api.Group("", middleware.Cache(middleware.DefaultCacheConfig()))
	r.catalogH.RegisterRoutes(public)

	private := api.Group("", middleware.Cache(middleware.NoStoreConfig()))
	r.reportH.RegisterRoutes(private)
	r.sequenceH.RegisterRoutes(private)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	r.healthH.RegisterRoutes(rg)
	if r.metricsH != nil && r.config.MetricsPath != "" {
		r.engine.GET(r.config.MetricsPath, r.metricsH)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
