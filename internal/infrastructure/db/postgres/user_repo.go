package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// UserRepo finds primary users in the users table.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrMissingField("email")
	}

	const q = `
SELECT id, email, username
FROM users
WHERE LOWER(email) = $1
LIMIT 1;
`
	var u domain.PrimaryUser
	err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound()
		}
		return nil, domain.ErrDBUnavailable(err)
	}
	return u, nil
}
