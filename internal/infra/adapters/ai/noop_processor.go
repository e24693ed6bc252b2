package ai

import (
	"context"
	"encoding/json"

	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.Processor = (*NoopProcessor)(nil)

// NoopProcessor echoes the payload back. Used in dev mode when no provider
// key is configured, and handy in local smoke tests.
type NoopProcessor struct{}

func NewNoopProcessor() *NoopProcessor { return &NoopProcessor{} }

func (p *NoopProcessor) Execute(_ context.Context, payload json.RawMessage) (*model.Result, error) {
	body, err := json.Marshal(struct {
		Echo json.RawMessage `json:"echo"`
	}{payload})
	if err != nil {
		return nil, err
	}
	return &model.Result{Body: body}, nil
}
