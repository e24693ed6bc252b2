// File: internal/infra/worker/consumer.go
package worker

import (
	"context"
	"errors"
	"time"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/adapter"
	"ai-request-orchestrator/internal/domain/ports/repository"
	"ai-request-orchestrator/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Consumer drains the work queue, invokes the processor and writes terminal
// state. Multiple consumers may run with no coordination beyond the queue and
// the record store; duplicate deliveries are absorbed by the guarded terminal
// write and the short-circuit on already-terminal records.
type Consumer struct {
	queue       adapter.WorkQueue
	records     repository.RecordStore
	proc        adapter.Processor
	maxAttempts int
	log         *zerolog.Logger
}

func NewConsumer(
	queue adapter.WorkQueue,
	records repository.RecordStore,
	proc adapter.Processor,
	maxAttempts int,
	logger *zerolog.Logger,
) *Consumer {
	compLog := logger.With().Str("component", "Consumer").Logger()
	return &Consumer{
		queue:       queue,
		records:     records,
		proc:        proc,
		maxAttempts: maxAttempts,
		log:         &compLog,
	}
}

// Start runs the receive loop until ctx is canceled, farming deliveries out
// to the pool. This should be run in a goroutine.
func (c *Consumer) Start(ctx context.Context, pool *Pool) {
	c.log.Info().Msg("queue consumer started")
	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("queue consumer stopping")
			return
		}
		job, err := c.queue.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrQueueEmpty):
				// nothing arrived inside the block window
			case errors.Is(err, domain.ErrMalformedJob):
				metrics.IncDropped()
				c.log.Error().Err(err).Msg("dropping undecodable message")
			case ctx.Err() != nil:
				c.log.Info().Msg("queue consumer stopping")
				return
			default:
				c.log.Error().Err(err).Msg("queue receive failed")
				time.Sleep(time.Second)
			}
			continue
		}
		j := job
		if err := pool.Submit(func(tctx context.Context) error { return c.Process(tctx, j) }); err != nil {
			// pool saturated: handle the delivery on the receive loop instead
			if perr := c.Process(ctx, j); perr != nil {
				c.log.Error().Err(perr).Str("request_id", j.RequestID).Msg("inline processing failed")
			}
		}
	}
}

// Process handles a single delivery end to end.
func (c *Consumer) Process(ctx context.Context, job *model.JobMessage) error {
	if !job.Valid() {
		metrics.IncDropped()
		c.log.Error().Interface("job", job).Msg("dropping malformed envelope")
		return nil
	}
	l := c.log.With().
		Str("request_id", job.RequestID).
		Str("owner_id", job.OwnerID).
		Str("trace_id", job.TraceID).
		Int("attempt", job.Attempt).
		Logger()

	// Duplicate delivery of an already-finished request is a no-op.
	if rec, err := c.records.Find(ctx, job.OwnerID, job.RequestID); err == nil && rec.Terminal() {
		metrics.IncJob("duplicate")
		l.Debug().Str("status", string(rec.Status)).Msg("record already terminal, acking duplicate")
		return nil
	}

	start := time.Now()
	res, err := c.proc.Execute(ctx, job.Payload)
	latency := time.Since(start)

	if err != nil {
		f := domain.Classify(err)
		if f.Retryable {
			if job.Attempt+1 >= c.maxAttempts {
				l.Error().Err(f).Int("max_attempts", c.maxAttempts).Msg("job exhausted redeliveries")
				c.writeFailed(ctx, job, f, &l)
				metrics.IncJob("failed")
				return nil
			}
			metrics.IncRequeue()
			l.Warn().Err(f).Msg("retryable failure, requeueing")
			if rqErr := c.queue.Requeue(ctx, job); rqErr != nil {
				l.Error().Err(rqErr).Msg("requeue failed")
				return rqErr
			}
			// Record stays in processing; a later delivery may still succeed.
			return f
		}
		l.Error().Err(f).Dur("duration", latency).Msg("job failed")
		c.writeFailed(ctx, job, f, &l)
		metrics.IncJob("failed")
		return nil
	}

	rec := model.NewProcessingRecord(job.OwnerID, job.RequestID, job.TraceID, job.CorrelationID)
	if merr := rec.Complete(res); merr != nil {
		return merr
	}
	if serr := c.records.SaveTerminal(ctx, rec); serr != nil {
		l.Error().Err(serr).Msg("terminal write failed")
		return serr
	}
	metrics.IncJob("completed")
	l.Info().Dur("duration", latency).Msg("job completed")
	return nil
}

func (c *Consumer) writeFailed(ctx context.Context, job *model.JobMessage, f *domain.Failure, l *zerolog.Logger) {
	rec := model.NewProcessingRecord(job.OwnerID, job.RequestID, job.TraceID, job.CorrelationID)
	if err := rec.Fail(&model.ErrorDescriptor{Message: f.Message, Code: f.Code, Details: f.Details}); err != nil {
		l.Error().Err(err).Msg("encode failure descriptor")
		return
	}
	if err := c.records.SaveTerminal(ctx, rec); err != nil {
		l.Error().Err(err).Msg("failed-state write failed")
	}
}
