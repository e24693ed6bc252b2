package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/adapter"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Processor = (*OpenAIProcessor)(nil)

// OpenAIProcessor executes chat payloads against the Chat Completions API.
type OpenAIProcessor struct {
	client openai.Client
	model  string
}

func NewOpenAIProcessor(apiKey, defaultModel string) (*OpenAIProcessor, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIProcessor{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
	}, nil
}

func (p *OpenAIProcessor) Execute(ctx context.Context, payload json.RawMessage) (*model.Result, error) {
	var in chatPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, domain.Terminal(http.StatusBadRequest, "decode chat payload: %v", err)
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages)+1)
	for _, m := range in.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	if in.Prompt != "" {
		msgs = append(msgs, openai.UserMessage(in.Prompt))
	}
	if len(msgs) == 0 {
		return nil, domain.Terminal(http.StatusBadRequest, "chat payload carries no messages")
	}

	mdl := modelOrDefault(in.Model, p.model)
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(mdl),
		Messages: msgs,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.Transient(http.StatusBadGateway, "openai returned no choices")
	}

	body, err := encodeReply(mdl, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return &model.Result{Body: body}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= http.StatusInternalServerError {
			return domain.Transient(apiErr.StatusCode, "openai: %v", apiErr.Error())
		}
		return domain.Terminal(apiErr.StatusCode, "openai: %v", apiErr.Error())
	}
	return domain.Classify(err)
}
