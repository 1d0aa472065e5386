package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dcm-services/job-processor/internal/http/handlers"
	"github.com/dcm-services/job-processor/internal/http/middleware"
	"github.com/dcm-services/job-processor/internal/observability"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
)

// RouterConfig wires the job-processor's three HTTP endpoints plus the
// shared ambient middleware chain (CORS, trace context, request logging,
// metrics), matching the donor's server.RouterConfig/NewRouter idiom.
type RouterConfig struct {
	Process *handlers.ProcessHandler
	Report  *handlers.ReportHandler
	Metrics *observability.Metrics
	Auth    *middleware.AuthMiddleware
	Log     *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.AttachRequestContext())
	router.Use(middleware.AttachTraceContext())
	router.Use(middleware.RequestLogger(cfg.Log))
	router.Use(middleware.Metrics(cfg.Metrics))
	router.Use(middleware.CORS())

	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapF(cfg.Metrics.Handler()))
	}

	protected := router.Group("/")
	if cfg.Auth != nil {
		protected.Use(cfg.Auth.RequireAuth())
	}
	if cfg.Process != nil {
		protected.POST("/process", cfg.Process.Create)
		protected.DELETE("/process", cfg.Process.Abort)
	}
	if cfg.Report != nil {
		protected.GET("/report", cfg.Report.Get)
	}

	return router
}
