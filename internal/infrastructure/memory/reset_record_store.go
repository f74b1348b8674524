package memory

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// ResetRecordStore keeps records in process. Expired records are not swept;
// the verification step ignores them.
type ResetRecordStore struct {
	mu      sync.Mutex
	records []domain.ResetRecord
}

func NewResetRecordStore() *ResetRecordStore {
	return &ResetRecordStore{}
}

func (s *ResetRecordStore) Create(ctx context.Context, rec domain.ResetRecord) error {
	if rec.AccountID == "" {
		return domain.ErrMissingField("account_id")
	}
	if rec.HashedCode == "" {
		return domain.ErrMissingField("hashed_code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *ResetRecordStore) Delete(ctx context.Context, rec domain.ResetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == rec.ID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// ByAccount returns a copy of every record issued to accountID.
func (s *ResetRecordStore) ByAccount(accountID string) []domain.ResetRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ResetRecord
	for _, r := range s.records {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out
}
