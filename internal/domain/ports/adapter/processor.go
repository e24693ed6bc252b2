package adapter

import (
	"context"
	"encoding/json"

	"ai-request-orchestrator/internal/domain/model"
)

// Processor performs the actual slow, rate-limited work. Implementations are
// unaware of orchestration; they return a result or an error whose
// retryability is tagged at origin (domain.Transient / domain.Terminal).
type Processor interface {
	Execute(ctx context.Context, payload json.RawMessage) (*model.Result, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, payload json.RawMessage) (*model.Result, error)

func (f ProcessorFunc) Execute(ctx context.Context, payload json.RawMessage) (*model.Result, error) {
	return f(ctx, payload)
}
