package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
)

var _ adapter.WorkQueue = (*Queue)(nil)

// Queue is a Redis-list work queue (LPUSH producer, BRPOP consumer).
// Delivery is at-least-once: a consumer crash between BRPOP and the terminal
// record write loses nothing the caller cannot re-submit, and retryable
// failures are put back explicitly via Requeue.
type Queue struct {
	client *Client
	name   string
	block  time.Duration
}

func NewQueue(client *Client, name string, block time.Duration) *Queue {
	return &Queue{client: client, name: name, block: block}
}

func (q *Queue) Publish(ctx context.Context, job *model.JobMessage) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.cli.LPush(ctx, q.name, data).Err(); err != nil {
		return domain.Transient(0, "queue publish: %v", err)
	}
	return nil
}

func (q *Queue) Receive(ctx context.Context) (*model.JobMessage, error) {
	res, err := q.client.cli.BRPop(ctx, q.block, q.name).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrQueueEmpty
		}
		return nil, domain.Transient(0, "queue receive: %v", err)
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected BRPOP reply", domain.ErrMalformedJob)
	}
	var job model.JobMessage
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedJob, err)
	}
	return &job, nil
}

func (q *Queue) Requeue(ctx context.Context, job *model.JobMessage) error {
	job.Attempt++
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.cli.LPush(ctx, q.name, data).Err(); err != nil {
		return domain.Transient(0, "queue requeue: %v", err)
	}
	return nil
}
