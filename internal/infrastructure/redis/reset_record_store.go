package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// ResetRecordStore keeps one key per record so re-issuing for the same account
// never overwrites an earlier record. Keys expire with the record.
type ResetRecordStore struct {
	rdb    *goredis.Client
	prefix string
	now    func() time.Time
}

func NewResetRecordStore(c *Client) *ResetRecordStore {
	var rdb *goredis.Client
	if c != nil {
		rdb = c.rdb
	}
	return &ResetRecordStore{
		rdb:    rdb,
		prefix: "prr:",
		now:    time.Now,
	}
}

type recordValue struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	AccountKind string    `json:"account_kind"`
	HashedCode  string    `json:"hashed_code"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *ResetRecordStore) Create(ctx context.Context, rec domain.ResetRecord) error {
	if rec.ID == "" {
		return domain.ErrMissingField("id")
	}
	if rec.AccountID == "" {
		return domain.ErrMissingField("account_id")
	}
	if rec.HashedCode == "" {
		return domain.ErrMissingField("hashed_code")
	}
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errors.New("redis reset record store not configured"))
	}
	if !rec.ExpiresAt.After(s.now()) {
		return domain.ErrInvalidField("expires_at", "already expired")
	}

	b, err := json.Marshal(recordValue{
		ID:          rec.ID,
		AccountID:   rec.AccountID,
		AccountKind: string(rec.AccountKind),
		HashedCode:  rec.HashedCode,
		ExpiresAt:   rec.ExpiresAt.UTC(),
		CreatedAt:   rec.CreatedAt.UTC(),
	})
	if err != nil {
		return domain.ErrInternal(err)
	}

	// NX: record ids are unique, a collision means a bug upstream.
	ok, err := s.rdb.SetNX(ctx, s.key(rec), b, rec.ExpiresAt.Sub(s.now())).Result()
	if err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	if !ok {
		return domain.ErrInvalidField("id", "duplicate record id")
	}
	return nil
}

func (s *ResetRecordStore) Delete(ctx context.Context, rec domain.ResetRecord) error {
	if s.rdb == nil {
		return domain.ErrRedisUnavailable(errors.New("redis reset record store not configured"))
	}
	if err := s.rdb.Del(ctx, s.key(rec)).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

func (s *ResetRecordStore) key(rec domain.ResetRecord) string {
	return s.prefix + rec.AccountID + ":" + rec.ID
}
