package reset

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

// Confirmation is returned once the email has been handed off (not delivered).
const Confirmation = "email sent"

type Service struct {
	resolver *Resolver
	codes    CodeGenerator
	hasher   SecretHasher
	records  RecordStore
	signer   TokenSigner
	mailer   Dispatcher

	codeTTL         time.Duration
	dispatchTimeout time.Duration

	now   func() time.Time
	newID func() string
	audit func(action string, fields map[string]string)

	// detached dispatches not yet finished
	inflight sync.WaitGroup
}

type Config struct {
	// DispatchTimeout bounds the detached hand-off to the dispatcher.
	DispatchTimeout time.Duration
}

type Deps struct {
	Resolver   *Resolver
	Codes      CodeGenerator
	Hasher     SecretHasher
	Records    RecordStore
	Signer     TokenSigner
	Dispatcher Dispatcher
	// NewID mints record IDs; defaults to uuid.NewString.
	NewID func() string
}

func NewService(d Deps, cfg Config) *Service {
	dispatchTimeout := cfg.DispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}
	newID := d.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		resolver: d.Resolver,
		codes:    d.Codes,
		hasher:   d.Hasher,
		records:  d.Records,
		signer:   d.Signer,
		mailer:   d.Dispatcher,

		codeTTL:         domain.ResetCodeTTL,
		dispatchTimeout: dispatchTimeout,

		now:   time.Now,
		newID: newID,
		audit: func(string, map[string]string) {},
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// WithClock replaces the clock used for CreatedAt/ExpiresAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Drain waits for detached dispatches to finish, or for ctx to end.
// Call it before closing the dispatcher.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
