package memory

import (
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// SeedDev fills the in-memory finders with one account of each kind.
func SeedDev(users, owners *AccountRepo) error {
	if err := users.Put(domain.PrimaryUser{
		ID:       "dev-user-1",
		Email:    "user@example.com",
		Username: "Dev User",
	}); err != nil {
		return err
	}
	return owners.Put(domain.OrganizationOwner{
		ID:    "dev-owner-1",
		Email: "owner@example.com",
		Name:  "Dev Owner",
	})
}
