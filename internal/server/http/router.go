package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agentsvc/internal/logging"
	"agentsvc/internal/observability"
)

// RouterDeps are the collaborators of the HTTP router.
type RouterDeps struct {
	Dispatcher     Dispatcher
	Observability  *observability.Observability
	AllowedOrigins []string
	Logger         logging.Logger
	Debug          bool
}

// NewRouter builds the gin engine serving the agent API.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := deps.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("http")
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(RecoveryMiddleware(logger))
	engine.Use(RequestIDMiddleware())
	engine.Use(ObservabilityMiddleware(deps.Observability, logger))
	if len(deps.AllowedOrigins) > 0 {
		engine.Use(CORSMiddleware(deps.AllowedOrigins))
	}

	handler := NewAgentHandler(deps.Dispatcher, logger)
	engine.GET("/", handler.HandleHealth)
	engine.GET("/health", handler.HandleHealth)
	engine.POST("/analyze", handler.HandleAnalyze)
	engine.POST("/qa", handler.HandleQA)
	engine.POST("/complex", handler.HandleComplex)

	if deps.Observability != nil && deps.Observability.Metrics.Enabled() {
		engine.GET("/metrics", gin.WrapH(deps.Observability.Metrics.Handler()))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorDetail{Detail: "Not Found"})
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorDetail{Detail: "Method Not Allowed"})
	})
	return engine
}
