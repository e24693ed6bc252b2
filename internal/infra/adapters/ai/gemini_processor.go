package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/genai"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/adapter"
)

var _ adapter.Processor = (*GeminiProcessor)(nil)

// GeminiProcessor executes chat payloads using the official Gemini SDK.
type GeminiProcessor struct {
	client *genai.Client
	model  string
	maxOut int
}

func NewGeminiProcessor(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiProcessor, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	return &GeminiProcessor{client: c, model: defaultModel, maxOut: maxOut}, nil
}

func (p *GeminiProcessor) Execute(ctx context.Context, payload json.RawMessage) (*model.Result, error) {
	var in chatPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, domain.Terminal(http.StatusBadRequest, "decode chat payload: %v", err)
	}

	msgs := in.Messages
	if in.Prompt != "" {
		msgs = append(msgs, chatMessage{Role: "user", Content: in.Prompt})
	}
	if len(msgs) == 0 {
		return nil, domain.Terminal(http.StatusBadRequest, "chat payload carries no messages")
	}

	history := toGenAIHistory(msgs[:len(msgs)-1])
	mdl := modelOrDefault(in.Model, p.model)

	chat, err := p.client.Chats.Create(
		ctx,
		mdl,
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(p.maxOut),
		},
		history,
	)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: msgs[len(msgs)-1].Content})
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			text = t
		}
	}

	body, err := encodeReply(mdl, text)
	if err != nil {
		return nil, err
	}
	return &model.Result{Body: body}, nil
}

func toGenAIHistory(messages []chatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  string(role),
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return domain.Transient(apiErr.Code, "gemini: %s", apiErr.Message)
		}
		return domain.Terminal(apiErr.Code, "gemini: %s", apiErr.Message)
	}
	return domain.Classify(err)
}
