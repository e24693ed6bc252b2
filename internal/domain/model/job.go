package model

import (
	"encoding/json"
	"time"
)

// JobMessage is the queue envelope. The queue is at-least-once: the same
// message may be delivered more than once, so consumers must be idempotent.
type JobMessage struct {
	OwnerID       string          `json:"ownerId"`
	RequestID     string          `json:"requestId"`
	TraceID       string          `json:"traceId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Attempt       int             `json:"attempt,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
}

// Valid reports whether the envelope carries the fields required to correlate
// it with a request record. Invalid messages are dropped, not retried.
func (j *JobMessage) Valid() bool {
	return j != nil && j.OwnerID != "" && j.RequestID != ""
}
