package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clientcomms/internal/prompt"
)

const caseJobsKey = "case_jobs"

// Job carries a case document to the worker. The text only lives in redis
// until the job is popped.
type Job struct {
	ID       string      `json:"job_id"`
	FileName string      `json:"file_name"`
	Text     string      `json:"text"`
	Task     prompt.Task `json:"task"`
	ReplayID string      `json:"replay_id,omitempty"`
}

type Queue struct {
	client *redis.Client
}

func New(url string) (*Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	return &Queue{client: client}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) PushCaseJob(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return q.client.LPush(ctx, caseJobsKey, payload).Err()
}

// PopCaseJob blocks up to timeout. ok is false when nothing arrived.
func (q *Queue) PopCaseJob(ctx context.Context, timeout time.Duration) (job Job, ok bool, err error) {
	res, err := q.client.BRPop(ctx, timeout, caseJobsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return job, false, nil
		}
		return job, false, err
	}
	if len(res) < 2 {
		return job, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return job, false, fmt.Errorf("decode job: %w", err)
	}
	return job, true, nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, caseJobsKey).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
