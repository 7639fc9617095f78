package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
	"github.com/ddx-ranking-engine/internal/middleware"
)

const (
	Version = "1.0.0"

	shutdownTimeout = 30 * time.Second
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	ranker        domain.DiagnosisRanker
	audit         domain.AuditStore
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance. A nil audit store disables
// the audit endpoints.
func NewServer(configManager domain.ConfigManager, ranker domain.DiagnosisRanker, audit domain.AuditStore, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := configManager.GetConfig()

	production := configManager.IsProduction()
	if cfg.Logging.Level == "debug" && !production {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders(production))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		ranker:        ranker,
		audit:         audit,
		logger:        logger,
		router:        router,
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	server.setupRoutes(limiter)

	return server
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(limiter *middleware.RateLimiter) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(limiter.Middleware())
	{
		v1.GET("/sources", s.handleSources)
		v1.POST("/rank", s.handleRank)
		v1.POST("/justify", s.handleJustify)
		v1.GET("/audit", s.handleListAudit)
		v1.GET("/audit/:id", s.handleGetAudit)
	}
}

// handleHealth reports degraded when no evidence source is available
func (s *Server) handleHealth(c *gin.Context) {
	available := 0
	stats := s.ranker.Sources()
	for _, st := range stats {
		if st.Available {
			available++
		}
	}
	status := "healthy"
	if available == 0 {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"timestamp":         time.Now().UTC(),
		"version":           Version,
		"sources":           len(stats),
		"sources_available": available,
		"audit_enabled":     s.audit != nil,
	})
}

func (s *Server) abort(c *gin.Context, status int, code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	c.AbortWithStatusJSON(status, domain.NewEngineError(code, message, details, middleware.GetCorrelationID(c)))
}
