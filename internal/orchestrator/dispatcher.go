// File: internal/orchestrator/dispatcher.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/adapter"
	"ai-request-orchestrator/internal/domain/ports/repository"
	"ai-request-orchestrator/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// markerTimeout bounds the fire-and-forget "processing" marker write so the
// goroutine cannot outlive a stuck store call.
const markerTimeout = 5 * time.Second

// Request is one inbound unit of work as seen by the dispatcher.
type Request struct {
	OwnerID       string
	RequestID     string
	TraceID       string
	CorrelationID string
	WaitBudget    time.Duration
	Payload       json.RawMessage
	Initial       bool // fresh submission vs. re-poll of an in-flight id
}

// Outcome is what the dispatcher hands to the responder: either a final
// result or a pending indication telling the caller to come back later.
type Outcome struct {
	Result  *model.Result
	Pending bool
}

// Dispatcher decides between answering synchronously and deferring to the
// work queue, and gives every caller an idempotent view of the outcome.
type Dispatcher struct {
	records     repository.RecordStore
	queue       adapter.WorkQueue // nil in local/degraded mode
	waiter      *Waiter
	maxSyncWait time.Duration
	log         *zerolog.Logger
}

func NewDispatcher(
	records repository.RecordStore,
	queue adapter.WorkQueue,
	waiter *Waiter,
	maxSyncWait time.Duration,
	logger *zerolog.Logger,
) *Dispatcher {
	compLog := logger.With().Str("component", "Dispatcher").Logger()
	return &Dispatcher{
		records:     records,
		queue:       queue,
		waiter:      waiter,
		maxSyncWait: maxSyncWait,
		log:         &compLog,
	}
}

// Initiate runs one request through the state machine. For a fresh submission
// it writes the advisory marker and either invokes the processor inline
// (waitBudget >= maxSyncWait, or no queue) or publishes a job and waits within
// the caller's budget. For a re-poll it resolves the stored record.
func (d *Dispatcher) Initiate(ctx context.Context, proc adapter.Processor, req Request) (*Outcome, error) {
	if req.OwnerID == "" || req.RequestID == "" {
		return nil, domain.ErrInvalidArgument
	}
	l := d.log.With().Str("request_id", req.RequestID).Str("owner_id", req.OwnerID).Logger()

	if !req.Initial {
		rec, err := d.records.Find(ctx, req.OwnerID, req.RequestID)
		if err != nil {
			return nil, err
		}
		metrics.IncDispatch("poll")
		return d.resolve(ctx, rec, req)
	}

	// A duplicate "initial" submission for an id we already know behaves like
	// a re-poll; the processor is never re-executed for a terminal record.
	if rec, err := d.records.Find(ctx, req.OwnerID, req.RequestID); err == nil {
		metrics.IncDispatch("poll")
		return d.resolve(ctx, rec, req)
	} else if !errors.Is(err, domain.ErrNotFound) {
		l.Warn().Err(err).Msg("record lookup failed on fresh submission, continuing")
	}

	d.writeMarkerAsync(req)

	if req.WaitBudget >= d.maxSyncWait || d.queue == nil {
		metrics.IncDispatch("sync")
		return d.runInline(ctx, proc, req, &l)
	}

	metrics.IncDispatch("async")
	job := &model.JobMessage{
		OwnerID:       req.OwnerID,
		RequestID:     req.RequestID,
		TraceID:       req.TraceID,
		CorrelationID: req.CorrelationID,
		Payload:       req.Payload,
	}
	if err := d.queue.Publish(ctx, job); err != nil {
		metrics.IncQueuePublishError()
		l.Error().Err(err).Msg("queue publish failed")
		f := domain.Terminal(0, "enqueue failed: %v", err)
		d.writeFailed(ctx, req, f, &l)
		return nil, f
	}
	l.Debug().Msg("job published")

	return d.awaitOrPending(ctx, req)
}

// resolve maps an existing record onto the outward contract.
func (d *Dispatcher) resolve(ctx context.Context, rec *model.RequestRecord, req Request) (*Outcome, error) {
	switch rec.Status {
	case model.RequestStatusCompleted:
		res, err := rec.ResultData()
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: res}, nil
	case model.RequestStatusFailed:
		ed, err := rec.ErrorData()
		if err != nil {
			return nil, err
		}
		return nil, failureFromDescriptor(ed)
	default:
		return d.awaitOrPending(ctx, req)
	}
}

func (d *Dispatcher) awaitOrPending(ctx context.Context, req Request) (*Outcome, error) {
	if req.WaitBudget <= 0 {
		return &Outcome{Pending: true}, nil
	}
	budget := req.WaitBudget
	if budget > d.maxSyncWait {
		budget = d.maxSyncWait
	}
	res, err := d.waiter.Wait(ctx, req.OwnerID, req.RequestID, budget)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &Outcome{Pending: true}, nil
	}
	return &Outcome{Result: res}, nil
}

// runInline executes the processor in the request context and writes the
// terminal record itself. A failure to persist the outcome is logged; the
// already-computed result is still returned to the caller.
func (d *Dispatcher) runInline(ctx context.Context, proc adapter.Processor, req Request, l *zerolog.Logger) (*Outcome, error) {
	res, err := proc.Execute(ctx, req.Payload)
	if err != nil {
		f := domain.Classify(err)
		d.writeFailed(ctx, req, f, l)
		return nil, f
	}

	rec := model.NewProcessingRecord(req.OwnerID, req.RequestID, req.TraceID, req.CorrelationID)
	if merr := rec.Complete(res); merr != nil {
		return nil, merr
	}
	if serr := d.records.SaveTerminal(ctx, rec); serr != nil {
		l.Error().Err(serr).Msg("terminal write failed after inline execution")
	}
	return &Outcome{Result: res}, nil
}

func (d *Dispatcher) writeFailed(ctx context.Context, req Request, f *domain.Failure, l *zerolog.Logger) {
	rec := model.NewProcessingRecord(req.OwnerID, req.RequestID, req.TraceID, req.CorrelationID)
	if err := rec.Fail(descriptorFromFailure(f)); err != nil {
		l.Error().Err(err).Msg("encode failure descriptor")
		return
	}
	if err := d.records.SaveTerminal(ctx, rec); err != nil {
		l.Error().Err(err).Msg("terminal write failed")
	}
}

// writeMarkerAsync writes the best-effort "processing" marker off the critical
// path. The goroutine's lifetime is bounded by markerTimeout and its failure
// is logged, never joined: the marker is advisory, only terminal writes are
// authoritative.
func (d *Dispatcher) writeMarkerAsync(req Request) {
	rec := model.NewProcessingRecord(req.OwnerID, req.RequestID, req.TraceID, req.CorrelationID)
	mctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	go func() {
		defer cancel()
		if err := d.records.SaveProcessing(mctx, rec); err != nil {
			d.log.Warn().Err(err).Str("request_id", req.RequestID).Msg("processing marker write failed")
		}
	}()
}

func failureFromDescriptor(ed *model.ErrorDescriptor) *domain.Failure {
	return &domain.Failure{Message: ed.Message, Code: ed.Code, Details: ed.Details}
}

func descriptorFromFailure(f *domain.Failure) *model.ErrorDescriptor {
	return &model.ErrorDescriptor{Message: f.Message, Code: f.Code, Details: f.Details}
}
