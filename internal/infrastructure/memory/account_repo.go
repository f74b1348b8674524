package memory

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// AccountRepo holds accounts of a single kind keyed by normalized email.
type AccountRepo struct {
	mu      sync.RWMutex
	kind    domain.AccountKind
	byEmail map[string]domain.Account
}

func NewAccountRepo(kind domain.AccountKind) *AccountRepo {
	return &AccountRepo{
		kind:    kind,
		byEmail: make(map[string]domain.Account),
	}
}

func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrAccountNotFound()
	}
	return a, nil
}

// Put stores a. Accounts of another kind are rejected.
func (r *AccountRepo) Put(a domain.Account) error {
	if a == nil || a.AccountID() == "" {
		return domain.ErrMissingField("id")
	}
	if a.Kind() != r.kind {
		return domain.ErrInvalidField("kind", "expected "+string(r.kind))
	}
	email := domain.NormalizeEmail(a.AccountEmail())
	if email == "" {
		return domain.ErrMissingField("email")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEmail[email] = a
	return nil
}
