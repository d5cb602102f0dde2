// Package httpapi exposes pipeline triggers and the curation queue over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsCurator/internal/domain"
	"NewsCurator/pkg/logger"
)

// Pipeline is the orchestration surface the API triggers.
type Pipeline interface {
	Run(ctx context.Context, step string, opts domain.RunOptions) (domain.RunReport, error)
	Backfill(ctx context.Context, req domain.BackfillRequest) (domain.BackfillReport, error)
	Stats(ctx context.Context) (domain.Stats, error)
	ActiveRuns() []domain.RunInfo
	CancelRun(runID string) bool
}

// Curation is the review workflow the API exposes to curators.
type Curation interface {
	Get(ctx context.Context, id string) (domain.CurationItem, error)
	List(ctx context.Context, filter domain.CurationFilter) (domain.CurationPage, error)
	Approve(ctx context.Context, id, categoryID, curator string) (domain.CurationItem, error)
	Reject(ctx context.Context, id, notes string) (domain.CurationItem, error)
	Edit(ctx context.Context, id, notes, curator string) (domain.CurationItem, error)
	Requeue(ctx context.Context, id, notes string) (domain.CurationItem, error)
	Reopen(ctx context.Context, id, notes string) (domain.CurationItem, error)
	Publish(ctx context.Context, id string) (domain.CurationItem, error)
	DeleteMany(ctx context.Context, newsIDs []string) domain.BulkResult
	SendToCuration(ctx context.Context, newsIDs []string) domain.BulkResult
}

// Config holds the listener settings.
type Config struct {
	Addr         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Deps are the services behind the routes. Health may be nil.
type Deps struct {
	Pipeline Pipeline
	Curation Curation
	Health   func(ctx context.Context) error
	Logger   *slog.Logger
}

// Server wraps the gin engine and its http.Server.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewRouter builds the engine with middleware and all routes.
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	router := gin.New()
	router.Use(gin.CustomRecoveryWithWriter(logger.New(log, "http", slog.LevelError).Writer(), recoverJSON))
	router.Use(requestLogger(log))
	router.Use(requestMetrics())

	h := &handler{pipeline: deps.Pipeline, curation: deps.Curation}

	router.GET("/healthz", healthz(deps.Health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/pipeline/run", h.runPipeline)
		v1.GET("/pipeline/stats", h.stats)
		v1.GET("/pipeline/runs", h.listRuns)
		v1.POST("/pipeline/runs/:id/cancel", h.cancelRun)
		v1.POST("/backfill", h.backfill)

		v1.GET("/curation", h.listCuration)
		v1.POST("/curation/batch", h.batch)
		v1.GET("/curation/:id", h.getCuration)
		v1.POST("/curation/:id/:action", h.curationAction)
	}
	return router
}

// NewServer prepares the HTTP server; call Start to listen.
func NewServer(cfg Config, deps Deps) *Server {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	router := NewRouter(deps)
	return &Server{
		router: router,
		logger: log,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ErrorLog:          logger.New(log, "http", slog.LevelWarn),
		},
	}
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

func recoverJSON(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func healthz(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
