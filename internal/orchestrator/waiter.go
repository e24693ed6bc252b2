// File: internal/orchestrator/waiter.go
package orchestrator

import (
	"context"
	"errors"
	"time"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/repository"
	"ai-request-orchestrator/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Waiter polls the record store with exponential backoff until the record
// turns terminal or the wait budget runs out. Exhausting the budget while the
// record is still processing is a normal outcome, not an error.
type Waiter struct {
	records repository.RecordStore
	initial time.Duration
	max     time.Duration
	log     *zerolog.Logger
}

func NewWaiter(records repository.RecordStore, initial, max time.Duration, logger *zerolog.Logger) *Waiter {
	compLog := logger.With().Str("component", "Waiter").Logger()
	return &Waiter{records: records, initial: initial, max: max, log: &compLog}
}

// Wait returns the stored result once completed, the stored failure once
// failed, or (nil, nil) when the budget is exhausted while still processing.
func (w *Waiter) Wait(ctx context.Context, ownerID, requestID string, budget time.Duration) (*model.Result, error) {
	start := time.Now()
	deadline := start.Add(budget)
	interval := w.initial

	for {
		rec, err := w.records.Find(ctx, ownerID, requestID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			// A store hiccup mid-poll is not fatal; the next iteration may succeed.
			w.log.Warn().Err(err).Str("request_id", requestID).Msg("record poll failed")
		}
		if rec != nil {
			switch rec.Status {
			case model.RequestStatusCompleted:
				metrics.ObserveWait("completed", float64(time.Since(start).Milliseconds()))
				return rec.ResultData()
			case model.RequestStatusFailed:
				ed, derr := rec.ErrorData()
				if derr != nil {
					return nil, derr
				}
				metrics.ObserveWait("failed", float64(time.Since(start).Milliseconds()))
				return nil, failureFromDescriptor(ed)
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			metrics.ObserveWait("pending", float64(time.Since(start).Milliseconds()))
			return nil, nil
		}
		if interval > remaining {
			interval = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2
		if interval > w.max {
			interval = w.max
		}
	}
}
