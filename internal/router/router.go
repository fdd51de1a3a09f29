package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/vespl/caseflow-api/internal/handler"
	"github.com/vespl/caseflow-api/internal/middleware"
	"github.com/vespl/caseflow-api/pkg/logger"
)

// Handler registers a group of routes.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
	CORS      middleware.CORSConfig
}

type Router struct {
	engine *gin.Engine
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	log *logger.Logger,
	config Config,
	handlers ...Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterDomainValidations()
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(config.CORS),
	)

	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	engine.GET("/health", handler.Health())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	api.Use(auth.Authenticate())
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
