package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// OwnerRepo finds organization owners in the owners table.
type OwnerRepo struct {
	db *sql.DB
}

func NewOwnerRepo(db *sql.DB) *OwnerRepo {
	return &OwnerRepo{db: db}
}

func (r *OwnerRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrMissingField("email")
	}

	const q = `
SELECT id, email, name
FROM owners
WHERE LOWER(email) = $1
LIMIT 1;
`
	var o domain.OrganizationOwner
	err := r.db.QueryRowContext(ctx, q, email).Scan(&o.ID, &o.Email, &o.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound()
		}
		return nil, domain.ErrDBUnavailable(err)
	}
	return o, nil
}
