package repository

import (
	"context"

	"ai-request-orchestrator/internal/domain/model"
)

// RecordStore is durable key-value persistence for request records, keyed by
// (owner id, request id).
type RecordStore interface {
	// Find returns the stored record or domain.ErrNotFound.
	Find(ctx context.Context, ownerID, requestID string) (*model.RequestRecord, error)

	// SaveProcessing writes the advisory "processing" marker. The first writer
	// wins; racing duplicates and write failures are tolerated because only
	// terminal writes are authoritative.
	SaveProcessing(ctx context.Context, rec *model.RequestRecord) error

	// SaveTerminal persists a completed/failed record. It never replaces an
	// already-terminal record, so duplicate deliveries are harmless.
	SaveTerminal(ctx context.Context, rec *model.RequestRecord) error
}
