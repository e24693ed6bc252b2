package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
)

func newTestDispatcher(records *memRecordStore, queue *memQueue) *Dispatcher {
	logger := newLogger()
	waiter := NewWaiter(records, 2*time.Millisecond, 10*time.Millisecond, logger)
	if queue == nil {
		return NewDispatcher(records, nil, waiter, 200*time.Millisecond, logger)
	}
	return NewDispatcher(records, queue, waiter, 200*time.Millisecond, logger)
}

func waitForMarker(t *testing.T, records *memRecordStore, ownerID, requestID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if records.get(ownerID, requestID) != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("marker for %s/%s never written", ownerID, requestID)
}

func TestInitiateSyncBypass(t *testing.T) {
	records := newMemRecordStore()
	queue := &memQueue{}
	d := newTestDispatcher(records, queue)
	proc := &fakeProcessor{}

	out, err := d.Initiate(context.Background(), proc, Request{
		OwnerID:    "owner-1",
		RequestID:  "req-sync",
		WaitBudget: time.Second, // >= maxSyncWait
		Payload:    json.RawMessage(`{"prompt":"hi"}`),
		Initial:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Pending || out.Result == nil {
		t.Fatalf("expected final result, got %+v", out)
	}
	if proc.callCount() != 1 {
		t.Fatalf("processor called %d times", proc.callCount())
	}
	if queue.published != 0 {
		t.Fatalf("sync path published %d jobs", queue.published)
	}

	rec := records.get("owner-1", "req-sync")
	if rec == nil || rec.Status != model.RequestStatusCompleted {
		t.Fatalf("terminal record not written: %+v", rec)
	}
}

func TestInitiateInlineWithoutQueue(t *testing.T) {
	records := newMemRecordStore()
	d := newTestDispatcher(records, nil)
	proc := &fakeProcessor{}

	out, err := d.Initiate(context.Background(), proc, Request{
		OwnerID:   "owner-1",
		RequestID: "req-noq",
		Initial:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Result == nil {
		t.Fatal("degraded mode must answer inline")
	}
	if proc.callCount() != 1 {
		t.Fatalf("processor called %d times", proc.callCount())
	}
}

func TestInitiateAsyncPending(t *testing.T) {
	records := newMemRecordStore()
	queue := &memQueue{}
	d := newTestDispatcher(records, queue)
	proc := &fakeProcessor{}

	out, err := d.Initiate(context.Background(), proc, Request{
		OwnerID:   "owner-1",
		RequestID: "req-async",
		Payload:   json.RawMessage(`{"prompt":"hi"}`),
		Initial:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Pending {
		t.Fatalf("expected pending outcome, got %+v", out)
	}
	if proc.callCount() != 0 {
		t.Fatal("async submission must not run the processor in-process")
	}
	if queue.published != 1 {
		t.Fatalf("published %d jobs, want 1", queue.published)
	}

	waitForMarker(t, records, "owner-1", "req-async")
	rec := records.get("owner-1", "req-async")
	if rec.Status != model.RequestStatusProcessing {
		t.Fatalf("marker status = %s", rec.Status)
	}
}

func TestInitiateAsyncWaitCompletes(t *testing.T) {
	records := newMemRecordStore()
	queue := &memQueue{}
	d := newTestDispatcher(records, queue)

	// Simulate a consumer finishing the job while the caller waits.
	go func() {
		time.Sleep(20 * time.Millisecond)
		rec := model.NewProcessingRecord("owner-1", "req-wait", "", "")
		_ = rec.Complete(&model.Result{StatusCode: 200, Body: json.RawMessage(`{"reply":"done"}`)})
		_ = records.SaveTerminal(context.Background(), rec)
	}()

	out, err := d.Initiate(context.Background(), &fakeProcessor{}, Request{
		OwnerID:    "owner-1",
		RequestID:  "req-wait",
		WaitBudget: 150 * time.Millisecond,
		Initial:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Pending || out.Result == nil {
		t.Fatalf("expected the completed result within the budget, got %+v", out)
	}
	if string(out.Result.Body) != `{"reply":"done"}` {
		t.Fatalf("unexpected body %s", out.Result.Body)
	}
}

func TestInitiateRepollCompleted(t *testing.T) {
	records := newMemRecordStore()
	rec := model.NewProcessingRecord("owner-1", "req-done", "", "")
	if err := rec.Complete(&model.Result{StatusCode: 207, Body: json.RawMessage(`{"a":1}`)}); err != nil {
		t.Fatal(err)
	}
	records.put(rec)

	d := newTestDispatcher(records, &memQueue{})
	proc := &fakeProcessor{}
	out, err := d.Initiate(context.Background(), proc, Request{
		OwnerID:   "owner-1",
		RequestID: "req-done",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Result == nil || out.Result.StatusCode != 207 {
		t.Fatalf("stored status code lost: %+v", out.Result)
	}
	if proc.callCount() != 0 {
		t.Fatal("re-poll must not re-execute the processor")
	}
}

func TestInitiateRepollFailed(t *testing.T) {
	records := newMemRecordStore()
	rec := model.NewProcessingRecord("owner-1", "req-bad", "", "")
	if err := rec.Fail(&model.ErrorDescriptor{Message: "Upstream 503", Code: 503}); err != nil {
		t.Fatal(err)
	}
	records.put(rec)

	d := newTestDispatcher(records, &memQueue{})
	_, err := d.Initiate(context.Background(), &fakeProcessor{}, Request{
		OwnerID:   "owner-1",
		RequestID: "req-bad",
	})
	f, ok := domain.AsFailure(err)
	if !ok {
		t.Fatalf("expected a failure, got %v", err)
	}
	if f.Message != "Upstream 503" || f.Code != 503 {
		t.Fatalf("stored failure descriptor lost: %+v", f)
	}
}

func TestInitiateRepollUnknownID(t *testing.T) {
	d := newTestDispatcher(newMemRecordStore(), &memQueue{})
	_, err := d.Initiate(context.Background(), &fakeProcessor{}, Request{
		OwnerID:   "owner-1",
		RequestID: "never-seen",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInitiateDuplicateInitialActsAsPoll(t *testing.T) {
	records := newMemRecordStore()
	rec := model.NewProcessingRecord("owner-1", "req-dup", "", "")
	if err := rec.Complete(&model.Result{Body: json.RawMessage(`{"cached":true}`)}); err != nil {
		t.Fatal(err)
	}
	records.put(rec)

	queue := &memQueue{}
	d := newTestDispatcher(records, queue)
	proc := &fakeProcessor{}
	out, err := d.Initiate(context.Background(), proc, Request{
		OwnerID:   "owner-1",
		RequestID: "req-dup",
		Initial:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Result.Body) != `{"cached":true}` {
		t.Fatalf("duplicate submission did not return stored result: %+v", out)
	}
	if proc.callCount() != 0 || queue.published != 0 {
		t.Fatal("duplicate submission must neither execute nor enqueue")
	}
}

func TestInitiatePublishFailureWritesFailed(t *testing.T) {
	records := newMemRecordStore()
	queue := &memQueue{publishErr: errors.New("broker down")}
	d := newTestDispatcher(records, queue)

	_, err := d.Initiate(context.Background(), &fakeProcessor{}, Request{
		OwnerID:   "owner-1",
		RequestID: "req-pub",
		Initial:   true,
	})
	f, ok := domain.AsFailure(err)
	if !ok {
		t.Fatalf("expected a failure, got %v", err)
	}
	if f.Retryable {
		t.Fatal("enqueue failure must be terminal for this request id")
	}
	rec := records.get("owner-1", "req-pub")
	if rec == nil || rec.Status != model.RequestStatusFailed {
		t.Fatalf("failed record not written: %+v", rec)
	}
}

func TestInitiateInlineFailureClassified(t *testing.T) {
	records := newMemRecordStore()
	d := newTestDispatcher(records, nil)
	proc := &fakeProcessor{fn: func(ctx context.Context, _ json.RawMessage) (*model.Result, error) {
		return nil, domain.Terminal(422, "invalid payload")
	}}

	_, err := d.Initiate(context.Background(), proc, Request{
		OwnerID:   "owner-1",
		RequestID: "req-inline-fail",
		Initial:   true,
	})
	f, ok := domain.AsFailure(err)
	if !ok || f.Code != 422 {
		t.Fatalf("expected the processor failure back, got %v", err)
	}
	rec := records.get("owner-1", "req-inline-fail")
	if rec == nil || rec.Status != model.RequestStatusFailed {
		t.Fatalf("failed record not written: %+v", rec)
	}
}

func TestInitiateRejectsMissingIdentity(t *testing.T) {
	d := newTestDispatcher(newMemRecordStore(), &memQueue{})
	for _, req := range []Request{
		{RequestID: "r", Initial: true},
		{OwnerID: "o", Initial: true},
	} {
		if _, err := d.Initiate(context.Background(), &fakeProcessor{}, req); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for %+v, got %v", req, err)
		}
	}
}
