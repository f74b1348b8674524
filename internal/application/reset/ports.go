package reset

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

/*
AccountFinder
-------------
Looks up one account kind by email.
Absence is signalled with domain.ErrAccountNotFound(); any other error is a
lookup failure and stops resolution.
*/
type AccountFinder interface {
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
}

/*
CodeGenerator
-------------
Produces a fresh human-enterable reset code from a CSPRNG.
*/
type CodeGenerator interface {
	Generate() (string, error)
}

/*
SecretHasher
------------
One-way hash shared with the verification step.
Changing the scheme breaks in-flight reset records.
*/
type SecretHasher interface {
	Hash(plain string) (string, error)
	Compare(hash string, plain string) error // nil if match
}

/*
RecordStore
-----------
Persists hashed reset records. Create never supersedes older records for the
same account. Delete is only used to clean up after a signing failure.
Implementations must be safe for concurrent inserts.
*/
type RecordStore interface {
	Create(ctx context.Context, rec domain.ResetRecord) error
	Delete(ctx context.Context, rec domain.ResetRecord) error
}

/*
TokenSigner
-----------
Binds {code, accountID} into one tamper-evident URL parameter.
*/
type TokenSigner interface {
	Sign(claims domain.CorrelationClaims) (string, error)
	Verify(token string) (domain.CorrelationClaims, error)
}

/*
Dispatcher
----------
Hands an email to the delivery subsystem. The service never waits on it.
*/
type Dispatcher interface {
	Dispatch(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is the payload handed to the dispatcher.
// AccountID and Link are carried for dispatchers that let a downstream
// service render the email itself.
type EmailMessage struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	Text      string `json:"text,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Link      string `json:"link,omitempty"`
}
