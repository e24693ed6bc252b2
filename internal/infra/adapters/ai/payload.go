// Package ai provides Processor implementations backed by external model
// providers. Provider status codes are mapped into the failure taxonomy here,
// at the error's origin: 429 and 5xx are retryable, other 4xx are terminal.
package ai

import "encoding/json"

// chatPayload is the request payload shape the AI processors understand.
// Either a full message list or the single-prompt shorthand.
type chatPayload struct {
	Model    string        `json:"model,omitempty"`
	Prompt   string        `json:"prompt,omitempty"`
	Messages []chatMessage `json:"messages,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatReply is the result body written back into the request record.
type chatReply struct {
	Model string `json:"model"`
	Reply string `json:"reply"`
}

func encodeReply(model, reply string) (json.RawMessage, error) {
	return json.Marshal(chatReply{Model: model, Reply: reply})
}

func modelOrDefault(model, def string) string {
	if model == "" {
		return def
	}
	return model
}
