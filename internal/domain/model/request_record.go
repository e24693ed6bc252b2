package model

import (
	"encoding/json"
	"time"
)

type RequestStatus string

const (
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusFailed     RequestStatus = "failed"
)

// Result is what a processor produced. StatusCode lets a processor carry a
// non-default outward status without that counting as an orchestration failure.
type Result struct {
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// ErrorDescriptor is the stored shape of a failed request's outcome.
type ErrorDescriptor struct {
	Message string          `json:"message"`
	Code    int             `json:"code,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// RequestRecord is the only persistent entity: one row/key per
// (owner, request id). Data holds the Result on completion and the
// ErrorDescriptor on failure; it is empty while processing.
type RequestRecord struct {
	OwnerID       string          `json:"ownerId"`
	RequestID     string          `json:"requestId"`
	Status        RequestStatus   `json:"status"`
	Data          json.RawMessage `json:"data,omitempty"`
	TraceID       string          `json:"traceId,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func NewProcessingRecord(ownerID, requestID, traceID, correlationID string) *RequestRecord {
	now := time.Now().UTC()
	return &RequestRecord{
		OwnerID:       ownerID,
		RequestID:     requestID,
		Status:        RequestStatusProcessing,
		TraceID:       traceID,
		CorrelationID: correlationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *RequestRecord) Terminal() bool {
	return r.Status == RequestStatusCompleted || r.Status == RequestStatusFailed
}

// Complete transitions the record to its completed terminal state.
func (r *RequestRecord) Complete(res *Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	r.Status = RequestStatusCompleted
	r.Data = data
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail transitions the record to its failed terminal state.
func (r *RequestRecord) Fail(ed *ErrorDescriptor) error {
	data, err := json.Marshal(ed)
	if err != nil {
		return err
	}
	r.Status = RequestStatusFailed
	r.Data = data
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// ResultData decodes Data for a completed record.
func (r *RequestRecord) ResultData() (*Result, error) {
	var res Result
	if err := json.Unmarshal(r.Data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ErrorData decodes Data for a failed record.
func (r *RequestRecord) ErrorData() (*ErrorDescriptor, error) {
	var ed ErrorDescriptor
	if err := json.Unmarshal(r.Data, &ed); err != nil {
		return nil, err
	}
	return &ed, nil
}
