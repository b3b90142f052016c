package agent

import (
	"errors"
	"fmt"

	"clientcomms/internal/llm"
	"clientcomms/internal/normalize"
)

// Kind classifies a failed invocation. The empty Kind means success.
type Kind string

const (
	KindNone               Kind = ""
	KindProviderInvocation Kind = "provider_invocation"
	KindResponseParse      Kind = "response_parse"
	KindSchemaValidation   Kind = "schema_validation"
	KindInternal           Kind = "internal"
)

const failureTone = "error"

// Result is the single outcome shape of an invocation. On failure Tone is
// "error", MessageDraft is empty and Error carries the underlying cause.
type Result struct {
	Tone         string `json:"tone"`
	MessageDraft string `json:"message_draft"`
	Reasoning    string `json:"reasoning"`
	Error        string `json:"error,omitempty"`
	Kind         Kind   `json:"-"`
}

func (r Result) Failed() bool {
	return r.Kind != KindNone
}

// SchemaError reports a parsed object that lacks one of the mandatory keys
// or holds a non-string value for it.
type SchemaError struct {
	Cause error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %v", e.Cause)
}

func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered at the invocation boundary.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Value)
}

// Classify maps err onto the closed set of failure kinds.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var invErr *llm.InvocationError
	if errors.As(err, &invErr) {
		return KindProviderInvocation
	}
	var parseErr *normalize.ParseError
	if errors.As(err, &parseErr) {
		return KindResponseParse
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return KindSchemaValidation
	}
	return KindInternal
}

// Failure builds the failure variant for err.
func Failure(err error) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	cause := err.Error()
	return Result{
		Tone:         failureTone,
		MessageDraft: "",
		Reasoning:    "Error generating communication: " + cause,
		Error:        cause,
		Kind:         Classify(err),
	}
}
