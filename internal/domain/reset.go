package domain

import "time"

// ResetCodeTTL is the lifetime of an issued reset code. The verification step
// treats ResetRecord.ExpiresAt as authoritative.
const ResetCodeTTL = 300 * time.Second

// ResetRecord is the persisted, hashed form of an issued reset code.
// HashedCode is a one-way digest; the plaintext code is never stored.
type ResetRecord struct {
	ID          string
	AccountID   string
	AccountKind AccountKind
	HashedCode  string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the record is no longer usable at now.
func (r ResetRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// CorrelationClaims is what the correlation token binds together.
type CorrelationClaims struct {
	Code      string
	AccountID string
}
