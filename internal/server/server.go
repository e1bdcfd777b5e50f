package server

import (
	"ctchen222/user-service/internal/api/response"
	"ctchen222/user-service/internal/ratelimit"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("server")

// Server owns the gin engine. Every path outside /healthz goes to the
// dispatcher.
type Server struct {
	engine *gin.Engine
}

// NewServer builds the middleware chain in front of dispatch. A nil
// limiter disables rate limiting.
func NewServer(dispatch gin.HandlerFunc, limiter ratelimit.Limiter) *Server {
	r := gin.New()
	r.Use(
		gin.CustomRecovery(recovery),
		RequestID(),
		Tracing(),
		Metrics(),
		AccessLog(),
		CORS(),
		SecurityHeaders(),
	)
	if limiter != nil {
		r.Use(RateLimit(limiter))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.NoRoute(dispatch)

	return &Server{engine: r}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func recovery(c *gin.Context, recovered any) {
	slog.ErrorContext(c.Request.Context(), "Recovered from panic", "panic", recovered, "http.path", c.Request.URL.Path)
	response.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	c.Abort()
}
