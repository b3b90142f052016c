// Package agent is the public entry point for drafting: it resolves the
// provider, builds the prompt, invokes the adapter, normalizes and validates
// the reply, and folds every failure into a Result.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"

	"clientcomms/internal/config"
	"clientcomms/internal/llm"
	"clientcomms/internal/normalize"
	"clientcomms/internal/observability"
	"clientcomms/internal/prompt"
)

// Agent holds only read-only collaborators and is safe for concurrent Run calls.
type Agent struct {
	cfg       config.LLM
	registry  *llm.Registry
	extractor normalize.Extractor
	schema    *jsonschema.Schema
	metrics   *observability.Metrics
	logger    *slog.Logger
}

type Option func(*Agent)

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(cfg config.LLM, registry *llm.Registry, opts ...Option) (*Agent, error) {
	schema, err := compileOutputSchema()
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:       cfg,
		registry:  registry,
		extractor: normalize.Extractor{Repair: cfg.RepairJSON},
		schema:    schema,
		logger:    observability.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run drafts a client message for documentText. It always returns exactly one
// Result; panics inside the pipeline become the failure variant.
func (a *Agent) Run(ctx context.Context, documentText string, task prompt.Task) (result Result) {
	start := time.Now()
	replayID := observability.ReplayIDFromContext(ctx)
	providerLabel := a.cfg.Provider
	model := a.cfg.Model

	ctx, span := observability.StartSpan(ctx, observability.SpanAgentRun,
		attribute.String(observability.AttrReplayID, replayID))
	defer func() {
		if r := recover(); r != nil {
			result = Failure(&PanicError{Value: r})
		}
		latency := time.Since(start)
		outcome := "success"
		var runErr error
		if result.Failed() {
			outcome = "failure"
			runErr = &outcomeError{kind: result.Kind, msg: result.Error}
			span.SetAttributes(attribute.String(observability.AttrKind, string(result.Kind)))
		}
		span.SetAttributes(
			attribute.String(observability.AttrProvider, providerLabel),
			attribute.String(observability.AttrModel, model),
		)
		observability.MarkSpanResult(span, runErr)
		span.End()

		a.metrics.ObserveInvocation(providerLabel, outcome, string(result.Kind), latency)
		level := slog.LevelInfo
		if result.Failed() {
			level = slog.LevelWarn
		}
		a.logger.Log(ctx, level, "agent invocation",
			"agent", ID,
			"replay_id", replayID,
			"provider", providerLabel,
			"model", model,
			"outcome", outcome,
			"kind", string(result.Kind),
			"latency_ms", latency.Milliseconds(),
		)
	}()

	settings, err := a.cfg.Settings()
	if err != nil {
		return Failure(err)
	}
	providerLabel = string(settings.Provider)
	model = settings.Model

	pair := prompt.Build(documentText, task)

	provider, err := a.registry.Lookup(settings.Provider)
	if err != nil {
		return Failure(err)
	}

	raw, err := a.invoke(ctx, provider, pair, settings)
	if err != nil {
		return Failure(err)
	}

	obj, err := a.extractor.Extract(raw)
	if err != nil {
		return Failure(err)
	}

	out, err := validateOutput(a.schema, obj)
	if err != nil {
		return Failure(err)
	}
	return out
}

func (a *Agent) invoke(ctx context.Context, provider llm.Provider, pair prompt.Pair, settings llm.Settings) (string, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanLLMInvoke,
		attribute.String(observability.AttrProvider, string(settings.Provider)),
		attribute.String(observability.AttrModel, settings.Model),
	)
	defer span.End()
	raw, err := provider.Invoke(ctx, pair, settings)
	observability.MarkSpanResult(span, err)
	return raw, err
}

// Provider reports the configured provider and model.
func (a *Agent) Provider() (string, string) {
	settings, err := a.cfg.Settings()
	if err != nil {
		return a.cfg.Provider, a.cfg.Model
	}
	return string(settings.Provider), settings.Model
}

// Info returns the static agent descriptor.
func (a *Agent) Info() Metadata {
	return Info()
}

type outcomeError struct {
	kind Kind
	msg  string
}

func (e *outcomeError) Error() string {
	return string(e.kind) + ": " + e.msg
}
