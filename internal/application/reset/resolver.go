package reset

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// Resolver tries its finders in order and returns the first account found.
// The order is fixed at construction: primary users before organization owners.
type Resolver struct {
	finders []AccountFinder
}

func NewResolver(finders ...AccountFinder) *Resolver {
	fs := make([]AccountFinder, 0, len(finders))
	for _, f := range finders {
		if f != nil {
			fs = append(fs, f)
		}
	}
	return &Resolver{finders: fs}
}

// Resolve returns domain.ErrEmailNotFound when no finder knows the email.
func (r *Resolver) Resolve(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrMissingField("email")
	}

	for _, f := range r.finders {
		acc, err := f.FindByEmail(ctx, email)
		if err != nil {
			if domain.Is(err, "account_not_found") {
				continue
			}
			return nil, err
		}
		if acc == nil {
			continue
		}
		return acc, nil
	}
	return nil, domain.ErrEmailNotFound()
}
