package llm

import (
	"context"
	"errors"
	"fmt"
)

// InvocationError is the single failure shape every adapter returns, whether
// the cause was transport, credentials, rate limiting or a bad envelope.
type InvocationError struct {
	Provider string
	Cause    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("provider invocation failed (%s): %v", e.Provider, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the call was abandoned because a deadline passed.
func (e *InvocationError) Timeout() bool {
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Cause, &te) && te.Timeout()
}

// StatusError is a non-2xx backend reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

func invocationError(provider string, cause error) error {
	return &InvocationError{Provider: provider, Cause: cause}
}
