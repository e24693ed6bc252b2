package orchestrator

import (
	"context"
	"encoding/json"
	"sync"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"

	"github.com/rs/zerolog"
)

// ---- Fakes ----

type memRecordStore struct {
	mu               sync.Mutex
	recs             map[string]*model.RequestRecord
	findErr          error
	terminalWrites   int
	processingWrites int
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{recs: map[string]*model.RequestRecord{}}
}

func recKey(ownerID, requestID string) string { return ownerID + "/" + requestID }

func (s *memRecordStore) Find(ctx context.Context, ownerID, requestID string) (*model.RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	rec, ok := s.recs[recKey(ownerID, requestID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// SaveProcessing mirrors SETNX: first writer wins, duplicates are no-ops.
func (s *memRecordStore) SaveProcessing(ctx context.Context, rec *model.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processingWrites++
	key := recKey(rec.OwnerID, rec.RequestID)
	if _, ok := s.recs[key]; ok {
		return nil
	}
	cp := *rec
	s.recs[key] = &cp
	return nil
}

// SaveTerminal mirrors the guarded write: terminal records are never replaced.
func (s *memRecordStore) SaveTerminal(ctx context.Context, rec *model.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminalWrites++
	key := recKey(rec.OwnerID, rec.RequestID)
	if cur, ok := s.recs[key]; ok && cur.Terminal() {
		return nil
	}
	cp := *rec
	s.recs[key] = &cp
	return nil
}

func (s *memRecordStore) put(rec *model.RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[recKey(rec.OwnerID, rec.RequestID)] = rec
}

func (s *memRecordStore) get(ownerID, requestID string) *model.RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs[recKey(ownerID, requestID)]
}

type memQueue struct {
	mu         sync.Mutex
	jobs       []*model.JobMessage
	publishErr error
	published  int
}

func (q *memQueue) Publish(ctx context.Context, job *model.JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published++
	cp := *job
	q.jobs = append(q.jobs, &cp)
	return nil
}

func (q *memQueue) Receive(ctx context.Context) (*model.JobMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, domain.ErrQueueEmpty
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memQueue) Requeue(ctx context.Context, job *model.JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	cp := *job
	q.jobs = append(q.jobs, &cp)
	return nil
}

func (q *memQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, payload json.RawMessage) (*model.Result, error)
}

func (p *fakeProcessor) Execute(ctx context.Context, payload json.RawMessage) (*model.Result, error) {
	p.mu.Lock()
	p.calls++
	fn := p.fn
	p.mu.Unlock()
	if fn == nil {
		return &model.Result{Body: json.RawMessage(`{"ok":true}`)}, nil
	}
	return fn(ctx, payload)
}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// ---- helpers ----

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }
