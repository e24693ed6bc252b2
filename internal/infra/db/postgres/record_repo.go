package postgres

import (
	"context"
	"errors"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.RecordStore = (*RecordRepo)(nil)

// RecordRepo is the Postgres-backed record store. Terminal monotonicity is
// enforced in SQL: the upsert only touches rows still in 'processing'.
type RecordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

func (r *RecordRepo) Find(ctx context.Context, ownerID, requestID string) (*model.RequestRecord, error) {
	const q = `
SELECT owner_id, request_id, status, data, trace_id, correlation_id, created_at, updated_at
FROM request_records
WHERE owner_id = $1 AND request_id = $2;`

	var rec model.RequestRecord
	var statusStr string
	err := r.pool.QueryRow(ctx, q, ownerID, requestID).Scan(
		&rec.OwnerID, &rec.RequestID, &statusStr, &rec.Data,
		&rec.TraceID, &rec.CorrelationID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classifyPgError(err)
	}
	rec.Status = model.RequestStatus(statusStr)
	return &rec, nil
}

func (r *RecordRepo) SaveProcessing(ctx context.Context, rec *model.RequestRecord) error {
	const q = `
INSERT INTO request_records (owner_id, request_id, status, data, trace_id, correlation_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (owner_id, request_id) DO NOTHING;`

	_, err := r.pool.Exec(ctx, q,
		rec.OwnerID, rec.RequestID, string(rec.Status), rec.Data,
		rec.TraceID, rec.CorrelationID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return classifyPgError(err)
	}
	return nil
}

func (r *RecordRepo) SaveTerminal(ctx context.Context, rec *model.RequestRecord) error {
	const q = `
INSERT INTO request_records (owner_id, request_id, status, data, trace_id, correlation_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (owner_id, request_id) DO UPDATE SET
  status = EXCLUDED.status,
  data = EXCLUDED.data,
  updated_at = EXCLUDED.updated_at
WHERE request_records.status = 'processing';`

	_, err := r.pool.Exec(ctx, q,
		rec.OwnerID, rec.RequestID, string(rec.Status), rec.Data,
		rec.TraceID, rec.CorrelationID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return classifyPgError(err)
	}
	return nil
}

// classifyPgError tags connection-level and contention errors as retryable so
// a worker redelivery can try again rather than poisoning the request.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", // serialization_failure, deadlock_detected
			"53300", "57P03", "08006", "08003": // too_many_connections, cannot_connect_now, connection failures
			return domain.Transient(0, "postgres: %s", pgErr.Message)
		}
		return err
	}
	// Driver-level failures (dial errors, closed pool) are transport problems.
	return domain.Classify(err)
}
