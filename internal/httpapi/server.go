// Package httpapi is the HTTP surface: case upload, async jobs, agent
// discovery, health, metrics and the MCP endpoint.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clientcomms/internal/config"
	"clientcomms/internal/observability"
	"clientcomms/internal/ratelimit"
	"clientcomms/internal/tools"
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Config   config.Config
	Service  *tools.Service
	MCP      http.Handler
	Limiter  *ratelimit.Limiter
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Checks   map[string]Pinger
}

type Server struct {
	cfg     config.Config
	svc     *tools.Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	checks  map[string]Pinger
	engine  *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	if !opts.Config.Dev.Mode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(replayMiddleware())
	engine.Use(requestLogger(logger))

	if len(opts.Config.CORS.AllowOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		if containsWildcard(opts.Config.CORS.AllowOrigins) {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = opts.Config.CORS.AllowOrigins
			corsConfig.AllowCredentials = true
		}
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "MCP-Session-Id", "MCP-Protocol-Version"}
		corsConfig.ExposeHeaders = []string{"X-Replay-Id", "MCP-Session-Id"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		cfg:     opts.Config,
		svc:     opts.Service,
		limiter: opts.Limiter,
		logger:  logger,
		checks:  opts.Checks,
		engine:  engine,
	}
	s.routes(opts)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(opts Options) {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/readyz", s.handleReady)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.engine.POST("/process_file", s.rateLimited(), s.handleProcessFile)

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/agents", s.handleAgents)
		v1.POST("/jobs", s.rateLimited(), s.handleSubmitJob)
		v1.GET("/jobs/:id", s.handleGetJob)
	}

	if opts.MCP != nil {
		s.engine.POST("/mcp", gin.WrapH(opts.MCP))
	}
}

// Serve runs handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	if logger != nil {
		logger.Info("http server listening", "addr", addr)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("http server stopped", "addr", addr)
	}
	return nil
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
