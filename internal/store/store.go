package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("not found")

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an already opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Invocation is one audited agent run. Only hashes of the inputs and outputs
// are kept; case text never reaches the database.
type Invocation struct {
	ID          string    `json:"id"`
	ReplayID    string    `json:"replay_id"`
	Agent       string    `json:"agent"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Outcome     string    `json:"outcome"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	LatencyMS   int64     `json:"latency_ms"`
	InputsHash  string    `json:"inputs_hash"`
	OutputsHash string    `json:"outputs_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) RecordInvocation(ctx context.Context, inv Invocation) (string, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO agent_invocations
		(id, replay_id, agent, provider, model, outcome, error_kind, latency_ms, inputs_hash, outputs_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		inv.ID, inv.ReplayID, inv.Agent, inv.Provider, inv.Model, inv.Outcome, inv.ErrorKind, inv.LatencyMS, inv.InputsHash, inv.OutputsHash)
	if err != nil {
		return "", fmt.Errorf("record invocation: %w", err)
	}
	return inv.ID, nil
}

func (s *Store) ListInvocations(ctx context.Context, limit int) ([]Invocation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, replay_id, agent, provider, model, outcome, error_kind, latency_ms, inputs_hash, outputs_hash, created_at
		FROM agent_invocations
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.ID, &inv.ReplayID, &inv.Agent, &inv.Provider, &inv.Model, &inv.Outcome, &inv.ErrorKind, &inv.LatencyMS, &inv.InputsHash, &inv.OutputsHash, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Job is the durable record of an asynchronous case submission. Result holds
// the serialized report once the job completes.
type Job struct {
	ID        string          `json:"job_id"`
	Status    string          `json:"status"`
	FileName  string          `json:"file_name"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *Store) CreateJob(ctx context.Context, fileName string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO case_jobs (id, status, file_name) VALUES ($1,$2,$3)`, id, JobQueued, fileName)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

func (s *Store) MarkJobRunning(ctx context.Context, id string) error {
	return s.updateJob(ctx, `UPDATE case_jobs SET status = $2, updated_at = now() WHERE id = $1`, id, JobRunning)
}

func (s *Store) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	return s.updateJob(ctx, `UPDATE case_jobs SET status = $2, result = $3, error = '', updated_at = now() WHERE id = $1`, id, JobCompleted, []byte(result))
}

func (s *Store) FailJob(ctx context.Context, id string, reason string) error {
	return s.updateJob(ctx, `UPDATE case_jobs SET status = $2, error = $3, updated_at = now() WHERE id = $1`, id, JobFailed, reason)
}

func (s *Store) updateJob(ctx context.Context, query string, id string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	var job Job
	if _, err := uuid.Parse(id); err != nil {
		return job, ErrNotFound
	}
	var result []byte
	row := s.db.QueryRowContext(ctx, `SELECT id, status, file_name, result, error, created_at, updated_at FROM case_jobs WHERE id = $1`, id)
	switch err := row.Scan(&job.ID, &job.Status, &job.FileName, &result, &job.Error, &job.CreatedAt, &job.UpdatedAt); err {
	case nil:
		if len(result) > 0 {
			job.Result = json.RawMessage(result)
		}
		return job, nil
	case sql.ErrNoRows:
		return job, ErrNotFound
	default:
		return job, err
	}
}

// HealthSummary reports row counts used by the doctor command.
func (s *Store) HealthSummary(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, table := range []string{"agent_invocations", "case_jobs"} {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
			return nil, err
		}
		out[table] = n
	}
	return out, nil
}
