package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-request-orchestrator/internal/domain"
	"ai-request-orchestrator/internal/domain/model"
	"ai-request-orchestrator/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.RecordStore = (*RecordRepo)(nil)

// RecordRepo persists request records as JSON values with a retention TTL.
type RecordRepo struct {
	client *Client
	ttl    time.Duration
}

func NewRecordRepo(client *Client, ttl time.Duration) *RecordRepo {
	return &RecordRepo{client: client, ttl: ttl}
}

func (s *RecordRepo) recordKey(ownerID, requestID string) string {
	return fmt.Sprintf("req:%s:%s", ownerID, requestID)
}

func (s *RecordRepo) Find(ctx context.Context, ownerID, requestID string) (*model.RequestRecord, error) {
	data, err := s.client.cli.Get(ctx, s.recordKey(ownerID, requestID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Transient(0, "redis get: %v", err)
	}
	var rec model.RequestRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveProcessing writes the advisory marker with SETNX: the first writer wins
// and racing duplicates are silent no-ops. Losing the race is not an error.
func (s *RecordRepo) SaveProcessing(ctx context.Context, rec *model.RequestRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := s.recordKey(rec.OwnerID, rec.RequestID)
	if err := s.client.cli.SetNX(ctx, key, data, s.ttl).Err(); err != nil {
		return domain.Transient(0, "redis setnx: %v", err)
	}
	return nil
}

// luaSaveTerminal refuses to replace a record that is already terminal, so
// duplicate deliveries and worker races cannot rewrite an outcome.
var luaSaveTerminal = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local ok, rec = pcall(cjson.decode, cur)
	if ok and rec.status ~= "processing" then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1`)

func (s *RecordRepo) SaveTerminal(ctx context.Context, rec *model.RequestRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := s.recordKey(rec.OwnerID, rec.RequestID)
	_, err = luaSaveTerminal.Run(ctx, s.client.cli, []string{key}, data, s.ttl.Milliseconds()).Result()
	if err != nil {
		return domain.Transient(0, "redis save terminal: %v", err)
	}
	return nil
}
