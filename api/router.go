// Package api exposes the detection service over HTTP with gin.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(logger.Named("http")), recovery(logger.Named("http")))

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/analyze", h.Analyze)
		v1.GET("/analysis/:id", h.AnalysisResult)
		v1.GET("/health", h.Health)
		v1.GET("/info", h.Info)
		v1.GET("/model", h.Model)
		v1.GET("/stats", h.Stats)
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		logger.Error("panic serving request", zap.Any("panic", err), zap.String("path", c.Request.URL.Path))
		Internal(c, "internal server error")
	})
}
