package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"clientcomms/internal/agent"
	"clientcomms/internal/observability"
	"clientcomms/internal/policy"
	"clientcomms/internal/prompt"
	"clientcomms/internal/queue"
	"clientcomms/internal/store"
)

var ErrJobsDisabled = errors.New("async jobs require both database and redis")

// Runner is one drafting agent.
type Runner interface {
	Run(ctx context.Context, documentText string, task prompt.Task) agent.Result
	Info() agent.Metadata
}

type AuditStore interface {
	RecordInvocation(ctx context.Context, inv store.Invocation) (string, error)
	CreateJob(ctx context.Context, fileName string) (string, error)
	MarkJobRunning(ctx context.Context, id string) error
	CompleteJob(ctx context.Context, id string, result json.RawMessage) error
	FailJob(ctx context.Context, id string, reason string) error
	GetJob(ctx context.Context, id string) (store.Job, error)
}

type JobQueue interface {
	PushCaseJob(ctx context.Context, job queue.Job) error
}

// CaseReport is what a caller receives for one case document.
type CaseReport struct {
	File     string                  `json:"file"`
	ReplayID string                  `json:"replay_id"`
	Results  map[string]agent.Result `json:"results"`
	Review   *policy.Review          `json:"review,omitempty"`
}

type Service struct {
	Agents  map[string]Runner
	Store   AuditStore
	Queue   JobQueue
	Policy  policy.Policy
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewService wires the service. Store and queue may be nil.
func NewService(guru Runner, st AuditStore, q JobQueue, pol policy.Policy, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Service{
		Agents:  map[string]Runner{agent.ID: guru},
		Store:   st,
		Queue:   q,
		Policy:  pol,
		Metrics: metrics,
		Logger:  logger,
	}
}

func (s *Service) agentIDs() []string {
	ids := make([]string, 0, len(s.Agents))
	for id := range s.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProcessCase runs every registered agent over the document. Agent failures
// are part of the report, never an error.
func (s *Service) ProcessCase(ctx context.Context, fileName string, text string, task prompt.Task) CaseReport {
	replayID := observability.ReplayIDFromContext(ctx)
	ctx = observability.WithReplayID(ctx, replayID)

	ids := s.agentIDs()
	results := make([]agent.Result, len(ids))
	latencies := make([]time.Duration, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i := i
		runner := s.Agents[id]
		g.Go(func() error {
			start := time.Now()
			results[i] = runner.Run(ctx, text, task)
			latencies[i] = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	report := CaseReport{
		File:     fileName,
		ReplayID: replayID,
		Results:  make(map[string]agent.Result, len(ids)),
	}
	for i, id := range ids {
		res := results[i]
		if id == agent.ID && !res.Failed() && !s.Policy.IsZero() {
			adjusted, review := policy.Evaluate(res.MessageDraft, s.Policy)
			if review.Blocked() {
				adjusted = ""
			}
			res.MessageDraft = adjusted
			report.Review = &review
		}
		report.Results[id] = res
		s.recordInvocation(ctx, replayID, id, text, task, res, latencies[i])
	}
	return report
}

func (s *Service) recordInvocation(ctx context.Context, replayID, agentID, text string, task prompt.Task, res agent.Result, latency time.Duration) {
	if s.Store == nil {
		return
	}
	outcome := "success"
	if res.Failed() {
		outcome = "failure"
	}
	provider, model := "", ""
	if p, ok := s.Agents[agentID].(interface{ Provider() (string, string) }); ok {
		provider, model = p.Provider()
	}
	_, err := s.Store.RecordInvocation(ctx, store.Invocation{
		ReplayID:    replayID,
		Agent:       agentID,
		Provider:    provider,
		Model:       model,
		Outcome:     outcome,
		ErrorKind:   string(res.Kind),
		LatencyMS:   latency.Milliseconds(),
		InputsHash:  hashJSON(map[string]any{"text": text, "task": task}),
		OutputsHash: hashJSON(res),
	})
	if err != nil {
		s.Logger.Warn("audit write failed", "replay_id", replayID, "agent", agentID, "error", err)
	}
}

// SubmitJob records a queued job and hands the document to the worker.
func (s *Service) SubmitJob(ctx context.Context, fileName string, text string, task prompt.Task) (string, error) {
	if s.Store == nil || s.Queue == nil {
		return "", ErrJobsDisabled
	}
	id, err := s.Store.CreateJob(ctx, fileName)
	if err != nil {
		return "", err
	}
	job := queue.Job{
		ID:       id,
		FileName: fileName,
		Text:     text,
		Task:     task,
		ReplayID: observability.ReplayIDFromContext(ctx),
	}
	if err := s.Queue.PushCaseJob(ctx, job); err != nil {
		_ = s.Store.FailJob(ctx, id, "enqueue failed")
		return "", fmt.Errorf("enqueue job %s: %w", id, err)
	}
	return id, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (store.Job, error) {
	if s.Store == nil {
		return store.Job{}, ErrJobsDisabled
	}
	return s.Store.GetJob(ctx, id)
}

// RunJob processes a popped job and persists its report.
func (s *Service) RunJob(ctx context.Context, job queue.Job) error {
	if s.Store == nil {
		return ErrJobsDisabled
	}
	if err := s.Store.MarkJobRunning(ctx, job.ID); err != nil {
		s.Metrics.IncJob(store.JobFailed)
		return fmt.Errorf("mark job %s running: %w", job.ID, err)
	}
	if job.ReplayID != "" {
		ctx = observability.WithReplayID(ctx, job.ReplayID)
	}
	report := s.ProcessCase(ctx, job.FileName, job.Text, job.Task)
	payload, err := json.Marshal(report)
	if err != nil {
		_ = s.Store.FailJob(ctx, job.ID, err.Error())
		s.Metrics.IncJob(store.JobFailed)
		return err
	}
	if err := s.Store.CompleteJob(ctx, job.ID, payload); err != nil {
		s.Metrics.IncJob(store.JobFailed)
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	s.Metrics.IncJob(store.JobCompleted)
	s.Logger.Info("case job completed", "job_id", job.ID, "replay_id", report.ReplayID)
	return nil
}

func (s *Service) AgentInfo() []agent.Metadata {
	out := make([]agent.Metadata, 0, len(s.Agents))
	for _, id := range s.agentIDs() {
		out = append(out, s.Agents[id].Info())
	}
	return out
}

func hashJSON(value any) string {
	data, _ := json.Marshal(value)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
