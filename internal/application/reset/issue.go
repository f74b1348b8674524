package reset

import (
	"context"
	"errors"
	"time"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// IssueRequest carries the email plus the host/protocol the link is built from.
// Host and Protocol are trusted as-is; the controller validates them.
type IssueRequest struct {
	Email    string
	Host     string
	Protocol string
}

// Receipt confirms the hand-off. It deliberately carries no code or token.
type Receipt struct {
	Message   string
	ExpiresAt time.Time
}

// Execute runs the issuance workflow:
// resolve -> generate -> hash+persist -> sign -> link -> dispatch.
// Each step depends on the previous one; nothing runs in parallel except the
// final dispatch, which is fire-and-forget.
func (s *Service) Execute(ctx context.Context, req IssueRequest) (Receipt, error) {
	acc, err := s.resolver.Resolve(ctx, req.Email)
	if err != nil {
		if domain.Is(err, "email_not_found") {
			s.audit("password_reset.email_not_found", nil)
		}
		return Receipt{}, err
	}

	code, err := s.codes.Generate()
	if err != nil {
		return Receipt{}, asDomain(err, domain.ErrRandomFailed)
	}

	hashed, err := s.hasher.Hash(code)
	if err != nil {
		return Receipt{}, asDomain(err, domain.ErrHashFailed)
	}

	now := s.now()
	rec := domain.ResetRecord{
		ID:          s.newID(),
		AccountID:   acc.AccountID(),
		AccountKind: acc.Kind(),
		HashedCode:  hashed,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.codeTTL),
	}
	if err := s.records.Create(ctx, rec); err != nil {
		s.audit("password_reset.storage_failed", map[string]string{
			"account_id": rec.AccountID,
			"error":      err.Error(),
		})
		return Receipt{}, domain.ErrStorageFailed(err)
	}

	token, err := s.signer.Sign(domain.CorrelationClaims{Code: code, AccountID: rec.AccountID})
	if err != nil {
		// a record without a token can never be redeemed
		if derr := s.records.Delete(ctx, rec); derr != nil {
			s.audit("password_reset.cleanup_failed", map[string]string{
				"record_id": rec.ID,
				"error":     derr.Error(),
			})
		}
		return Receipt{}, domain.ErrTokenSignFailed(err)
	}

	link := BuildResetLink(req.Protocol, req.Host, token, rec.AccountID)

	msg, err := RenderResetEmail(domain.NormalizeEmail(req.Email), acc.DisplayName(), link, s.codeTTL, now)
	if err != nil {
		return Receipt{}, domain.ErrInternal(err)
	}
	msg.AccountID = rec.AccountID

	s.audit("password_reset.issued", map[string]string{
		"account_id":   rec.AccountID,
		"account_kind": string(rec.AccountKind),
		"record_id":    rec.ID,
	})

	s.dispatch(ctx, rec, msg)

	return Receipt{Message: Confirmation, ExpiresAt: rec.ExpiresAt}, nil
}

// dispatch hands msg off without waiting. The request context is detached so
// client disconnects do not cancel delivery; dispatchTimeout bounds it instead.
func (s *Service) dispatch(ctx context.Context, rec domain.ResetRecord, msg EmailMessage) {
	if s.mailer == nil {
		return
	}
	dctx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		dctx, cancel := context.WithTimeout(dctx, s.dispatchTimeout)
		defer cancel()

		if err := s.mailer.Dispatch(dctx, msg); err != nil {
			s.audit("password_reset.dispatch_failed", map[string]string{
				"account_id": rec.AccountID,
				"record_id":  rec.ID,
				"error":      err.Error(),
			})
			return
		}
		s.audit("password_reset.dispatched", map[string]string{
			"account_id": rec.AccountID,
			"record_id":  rec.ID,
		})
	}()
}

// asDomain keeps domain errors from adapters and wraps everything else with wrap.
func asDomain(err error, wrap func(error) *domain.Error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return wrap(err)
}
