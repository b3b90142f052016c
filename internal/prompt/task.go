package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Task is the caller-supplied task descriptor. It is kept as the caller's raw
// JSON object so that rendering preserves the original key order.
type Task struct {
	raw json.RawMessage
}

var errTaskNotObject = errors.New("task must be a JSON object")

// ParseTask accepts a JSON object. Empty input yields an empty task.
func ParseTask(data []byte) (Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Task{}, nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return Task{}, errTaskNotObject
	}
	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)
	return Task{raw: raw}, nil
}

// NewTask builds a task from a map. Keys are rendered in sorted order.
func NewTask(fields map[string]any) Task {
	if len(fields) == 0 {
		return Task{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return Task{}
	}
	return Task{raw: raw}
}

func (t Task) IsEmpty() bool {
	return len(t.raw) == 0 || bytes.Equal(t.raw, []byte("{}"))
}

// Fields decodes the task into a map. Order is not preserved.
func (t Task) Fields() map[string]any {
	out := map[string]any{}
	if len(t.raw) == 0 {
		return out
	}
	_ = json.Unmarshal(t.raw, &out)
	return out
}

// Pretty renders the task with two-space indentation.
func (t Task) Pretty() string {
	if len(t.raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, t.raw, "", "  "); err != nil {
		return string(t.raw)
	}
	return buf.String()
}

func (t Task) MarshalJSON() ([]byte, error) {
	if len(t.raw) == 0 {
		return []byte("{}"), nil
	}
	return t.raw, nil
}

func (t *Task) UnmarshalJSON(data []byte) error {
	parsed, err := ParseTask(data)
	if err != nil {
		return fmt.Errorf("decode task: %w", err)
	}
	*t = parsed
	return nil
}

// DefaultTask is used when a caller supplies no task descriptor.
func DefaultTask() Task {
	return Task{raw: json.RawMessage(`{"task_type":"client_message"}`)}
}
