package adapter

import (
	"context"

	"ai-request-orchestrator/internal/domain/model"
)

// WorkQueue is an at-least-once message channel for job envelopes.
type WorkQueue interface {
	Publish(ctx context.Context, job *model.JobMessage) error

	// Receive blocks up to the client's configured window and returns one
	// message, or domain.ErrQueueEmpty when nothing arrived in time.
	Receive(ctx context.Context) (*model.JobMessage, error)

	// Requeue makes a message eligible for redelivery after a retryable
	// processing failure. Implementations bump the attempt counter.
	Requeue(ctx context.Context, job *model.JobMessage) error
}
