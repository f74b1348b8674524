package postgres

import (
	"context"
	"database/sql"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

type ResetRecordRepo struct {
	db *sql.DB
}

func NewResetRecordRepo(db *sql.DB) *ResetRecordRepo {
	return &ResetRecordRepo{db: db}
}

func (r *ResetRecordRepo) Create(ctx context.Context, rec domain.ResetRecord) error {
	if rec.ID == "" {
		return domain.ErrMissingField("id")
	}
	if rec.AccountID == "" {
		return domain.ErrMissingField("account_id")
	}
	if rec.HashedCode == "" {
		return domain.ErrMissingField("hashed_code")
	}

	const q = `
INSERT INTO password_reset_records (id, account_id, account_kind, hashed_code, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.AccountID, string(rec.AccountKind), rec.HashedCode,
		rec.ExpiresAt.UTC(), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

// Delete removes rec by id. A missing row is not an error.
func (r *ResetRecordRepo) Delete(ctx context.Context, rec domain.ResetRecord) error {
	const q = `DELETE FROM password_reset_records WHERE id = $1;`
	if _, err := r.db.ExecContext(ctx, q, rec.ID); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
