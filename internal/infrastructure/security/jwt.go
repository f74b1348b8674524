package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// CorrelationSigner binds a reset code to an account id in one HS256 token.
// Its expiry is defence in depth; ResetRecord.ExpiresAt stays authoritative.
type CorrelationSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewCorrelationSigner(secret, issuer string, ttl time.Duration) *CorrelationSigner {
	if ttl <= 0 {
		ttl = domain.ResetCodeTTL
	}
	return &CorrelationSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

type correlationClaims struct {
	Code      string `json:"code"`
	AccountID string `json:"uid"`
	jwt.RegisteredClaims
}

func (s *CorrelationSigner) Sign(c domain.CorrelationClaims) (string, error) {
	if strings.TrimSpace(c.Code) == "" {
		return "", domain.ErrMissingField("code")
	}
	if strings.TrimSpace(c.AccountID) == "" {
		return "", domain.ErrMissingField("account_id")
	}
	if len(s.secret) == 0 {
		return "", domain.ErrTokenSignFailed(errors.New("empty signing secret"))
	}

	now := s.now()
	claims := correlationClaims{
		Code:      c.Code,
		AccountID: c.AccountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.AccountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (s *CorrelationSigner) Verify(token string) (domain.CorrelationClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &correlationClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.CorrelationClaims{}, domain.ErrTokenExpired()
		}
		return domain.CorrelationClaims{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*correlationClaims)
	if !ok || !parsed.Valid || claims.Code == "" || claims.AccountID == "" {
		return domain.CorrelationClaims{}, domain.ErrTokenInvalid()
	}
	if claims.Subject != claims.AccountID {
		return domain.CorrelationClaims{}, domain.ErrTokenInvalid()
	}

	return domain.CorrelationClaims{
		Code:      claims.Code,
		AccountID: claims.AccountID,
	}, nil
}
