package ratelimit

import "fmt"

// Error is returned by callers that reject a request on a denied bucket.
type Error struct {
	RetryAfterSeconds int
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limited: retry after %ds", e.RetryAfterSeconds)
}
