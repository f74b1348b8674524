package domain

import "strings"

// AccountKind names one of the mutually exclusive account categories that can
// own an email address.
type AccountKind string

const (
	KindPrimaryUser       AccountKind = "primary_user"
	KindOrganizationOwner AccountKind = "organization_owner"
)

func (k AccountKind) Valid() bool {
	switch k {
	case KindPrimaryUser, KindOrganizationOwner:
		return true
	default:
		return false
	}
}

// Account is the read contract both account kinds satisfy.
type Account interface {
	AccountID() string
	AccountEmail() string
	DisplayName() string
	Kind() AccountKind
}

type PrimaryUser struct {
	ID       string
	Email    string
	Username string
}

func (u PrimaryUser) AccountID() string    { return u.ID }
func (u PrimaryUser) AccountEmail() string { return u.Email }
func (u PrimaryUser) DisplayName() string  { return u.Username }
func (u PrimaryUser) Kind() AccountKind    { return KindPrimaryUser }

type OrganizationOwner struct {
	ID    string
	Email string
	Name  string
}

func (o OrganizationOwner) AccountID() string    { return o.ID }
func (o OrganizationOwner) AccountEmail() string { return o.Email }
func (o OrganizationOwner) DisplayName() string  { return o.Name }
func (o OrganizationOwner) Kind() AccountKind    { return KindOrganizationOwner }

// NormalizeEmail is the canonical form used for every email comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
