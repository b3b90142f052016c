package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"clientcomms/internal/agent"
	"clientcomms/internal/config"
	"clientcomms/internal/httpapi"
	"clientcomms/internal/llm"
	"clientcomms/internal/mcp"
	"clientcomms/internal/observability"
	"clientcomms/internal/policy"
	"clientcomms/internal/queue"
	"clientcomms/internal/ratelimit"
	"clientcomms/internal/store"
	"clientcomms/internal/tools"
)

const popTimeout = 5 * time.Second

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Store    *store.Store
	Queue    *queue.Queue
	Policy   policy.Policy
	Agent    *agent.Agent
	Tools    *tools.Service
	MCP      *mcp.Server
	HTTP     *httpapi.Server
}

// New builds the application. Database and redis are optional; without them
// synchronous drafting still works and async jobs report unavailable.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NewLogger(cfg.Log.Level, cfg.Log.Format, nil)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.MustNewMetrics(reg)

	a := &App{Config: cfg, Logger: logger, Registry: reg, Metrics: metrics}

	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, st.DB()); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Store = st
	}

	if cfg.Redis.URL != "" {
		q, err := queue.New(cfg.Redis.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Queue = q
	}

	if cfg.Policy.Path != "" {
		pol, err := policy.Load(cfg.Policy.Path)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Policy = pol
	}

	guru, err := agent.New(cfg.LLM, BuildProviders(cfg.LLM), agent.WithMetrics(metrics), agent.WithLogger(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Agent = guru

	var auditStore tools.AuditStore
	if a.Store != nil {
		auditStore = a.Store
	}
	var jobQueue tools.JobQueue
	if a.Queue != nil {
		jobQueue = a.Queue
	}
	a.Tools = tools.NewService(guru, auditStore, jobQueue, a.Policy, metrics, logger)

	limiter := ratelimit.New(cfg.RateLimit.RPM)
	a.MCP = mcp.NewServer(cfg, a.Tools, limiter, logger)

	checks := map[string]httpapi.Pinger{}
	if a.Store != nil {
		checks["database"] = a.Store
	}
	if a.Queue != nil {
		checks["redis"] = a.Queue
	}
	a.HTTP = httpapi.New(httpapi.Options{
		Config:   cfg,
		Service:  a.Tools,
		MCP:      http.HandlerFunc(a.MCP.HandleHTTP),
		Limiter:  limiter,
		Gatherer: reg,
		Logger:   logger,
		Checks:   checks,
	})
	return a, nil
}

// BuildProviders registers one adapter per supported backend. Adapters whose
// credentials are missing still register and fail at invocation time.
func BuildProviders(cfg config.LLM) *llm.Registry {
	return llm.NewRegistry(
		llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Timeout),
		llm.NewAnthropic(cfg.AnthropicKey, cfg.AnthropicBaseURL, cfg.Timeout),
		llm.NewOllama(cfg.OllamaURL, cfg.Timeout),
		llm.NewNoop(),
	)
}

func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	return err
}

func (a *App) Serve(ctx context.Context) error {
	return httpapi.Serve(ctx, a.Config.HTTP.Addr, a.HTTP.Handler(), a.Logger)
}

// RunWorker consumes queued case jobs with concurrency goroutines until ctx
// is cancelled.
func (a *App) RunWorker(ctx context.Context, concurrency int) error {
	if a.Store == nil || a.Queue == nil {
		return tools.ErrJobsDisabled
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	a.Logger.Info("worker started", "concurrency", concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		worker := i
		g.Go(func() error {
			a.workLoop(ctx, worker)
			return nil
		})
	}
	err := g.Wait()
	a.Logger.Info("worker stopped")
	return err
}

func (a *App) workLoop(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, ok, err := a.Queue.PopCaseJob(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			a.Logger.Warn("pop case job failed", "worker", worker, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		if err := a.Tools.RunJob(ctx, job); err != nil {
			a.Logger.Error("case job failed", "worker", worker, "job_id", job.ID, "error", err)
		}
	}
}
