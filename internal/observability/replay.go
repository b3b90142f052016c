package observability

import (
	"context"

	"github.com/google/uuid"
)

type replayKey struct{}

func NewReplayID() string {
	return uuid.NewString()
}

// WithReplayID attaches id to ctx so downstream logs and audit rows share it.
func WithReplayID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, replayKey{}, id)
}

// ReplayIDFromContext returns the attached id or a fresh one.
func ReplayIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(replayKey{}).(string); ok && id != "" {
		return id
	}
	return NewReplayID()
}
