// Package devbackend is a local stand-in for the photo processing service.
// It speaks the same HTTP contract as the real service but only crops and
// resizes; there is no face detection or background removal.
package devbackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-photoid/internal/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAddr        = "127.0.0.1:8000"
	DefaultMaxUploadMB = 10
	DefaultHourlyLimit = 3
	DefaultDailyLimit  = 10

	ServiceName    = "PhotoID AI API"
	ServiceVersion = "1.0.0"

	previewRoute = "/api/v1/photos/preview"
)

// Server serves the preview endpoint plus health probes.
type Server struct {
	cfg     models.DevBackendConfig
	engine  *gin.Engine
	limiter *RateLimiter
}

// New builds a server from cfg, filling in defaults for zero values.
// Negative limits disable rate limiting.
func New(cfg models.DevBackendConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = DefaultMaxUploadMB
	}
	if cfg.HourlyLimit == 0 {
		cfg.HourlyLimit = DefaultHourlyLimit
	}
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}

	s := &Server{
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.HourlyLimit, cfg.DailyLimit),
	}

	engine := gin.New()
	engine.MaxMultipartMemory = s.maxUploadBytes()
	engine.Use(loggingMiddleware())
	engine.Use(gin.CustomRecovery(handlePanics()))
	s.registerRoutes(engine)
	s.engine = engine
	return s
}

// Handler exposes the router, for httptest and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.cfg.MaxUploadMB) << 20
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": ServiceName, "version": ServiceVersion})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST(previewRoute, s.rateLimitMiddleware(), s.handlePreview)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Development backend listening on http://%s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("development backend stopped: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down development backend...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Debug("[DevBackend] Request handled")
	}
}

func handlePanics() gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		log.Errorf("[DevBackend] Recovered from panic: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}

func abortDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
