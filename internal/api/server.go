// Package api implements the HTTP API for the discovery service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/channelscout/internal/logger"
)

const readHeaderTimeout = 10 * time.Second

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(log logger.Interface, service JobService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jobs := NewJobsHandler(service)

	v1 := router.Group("/api/v1")
	v1.POST("/jobs", jobs.CreateJob)
	v1.POST("/jobs/continue", jobs.ContinueJob)
	v1.GET("/jobs/:id", jobs.GetJob)
	v1.POST("/jobs/:id/cancel", jobs.CancelJob)
	v1.POST("/jobs/:id/ack", jobs.AcknowledgeJob)

	return router
}

// NewHTTPServer builds the HTTP server around the router.
func NewHTTPServer(cfg ServerConfig, log logger.Interface, service JobService) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           SetupRouter(log, service),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// RunServer serves until ctx is cancelled, then shuts down gracefully within
// the given timeout.
func RunServer(ctx context.Context, srv *http.Server, log logger.Interface, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// loggingMiddleware logs HTTP requests the same way the rest of the service
// logs: structured key/value pairs.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
