package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "clientcomms"

	SpanAgentRun  = "clientcomms.agent.run"
	SpanLLMInvoke = "clientcomms.llm.invoke"

	AttrReplayID = "clientcomms.replay_id"
	AttrProvider = "clientcomms.llm.provider"
	AttrModel    = "clientcomms.llm.model"
	AttrOutcome  = "clientcomms.outcome"
	AttrKind     = "clientcomms.error_kind"
)

// StartSpan opens a span on the globally registered tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, name, trace.WithAttributes(attrs...))
}

// MarkSpanResult sets the span status from err.
func MarkSpanResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrOutcome, "failure"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(AttrOutcome, "success"))
}
