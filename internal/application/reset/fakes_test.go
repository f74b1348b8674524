package reset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

/*
Fakes for ports
*/

type fakeFinder struct {
	mu sync.Mutex

	byEmail map[string]domain.Account
	err     error // if set, returned for every lookup

	calls []string
}

func newFakeFinder(accounts ...domain.Account) *fakeFinder {
	f := &fakeFinder{byEmail: map[string]domain.Account{}}
	for _, a := range accounts {
		f.byEmail[a.AccountEmail()] = a
	}
	return f
}

func (f *fakeFinder) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, email)
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.byEmail[email]
	if !ok {
		return nil, domain.ErrAccountNotFound()
	}
	return a, nil
}

func (f *fakeFinder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCodes struct {
	mu    sync.Mutex
	n     int
	err   error
	calls int
}

func (f *fakeCodes) Generate() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.n++
	return fmt.Sprintf("CODE%04d", f.n), nil
}

// fakeHasher is deterministic so tests can assert on digests.
type fakeHasher struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeHasher) Hash(plain string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "hashed:" + reverse(plain), nil
}

func (f *fakeHasher) Compare(hash, plain string) error {
	if hash != "hashed:"+reverse(plain) {
		return errors.New("mismatch")
	}
	return nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

type fakeRecords struct {
	mu sync.Mutex

	createErr error
	deleteErr error

	created []domain.ResetRecord
	deleted []domain.ResetRecord
}

func (f *fakeRecords) Create(ctx context.Context, rec domain.ResetRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeRecords) Delete(ctx context.Context, rec domain.ResetRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, rec)
	return f.deleteErr
}

func (f *fakeRecords) snapshot() []domain.ResetRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ResetRecord(nil), f.created...)
}

type fakeSigner struct {
	mu     sync.Mutex
	err    error
	signed []domain.CorrelationClaims
}

func (f *fakeSigner) Sign(c domain.CorrelationClaims) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	f.signed = append(f.signed, c)
	return "tok." + c.AccountID + "." + c.Code, nil
}

func (f *fakeSigner) Verify(token string) (domain.CorrelationClaims, error) {
	return domain.CorrelationClaims{}, domain.ErrTokenInvalid()
}

func (f *fakeSigner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signed)
}

type fakeDispatcher struct {
	sent chan EmailMessage
	err  error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{sent: make(chan EmailMessage, 16)}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, msg EmailMessage) error {
	f.sent <- msg
	return f.err
}

func (f *fakeDispatcher) wait(timeout time.Duration) (EmailMessage, bool) {
	select {
	case m := <-f.sent:
		return m, true
	case <-time.After(timeout):
		return EmailMessage{}, false
	}
}

// gatedDispatcher blocks every dispatch until release is closed.
type gatedDispatcher struct {
	release chan struct{}

	mu    sync.Mutex
	count int
}

func newGatedDispatcher() *gatedDispatcher {
	return &gatedDispatcher{release: make(chan struct{})}
}

func (f *gatedDispatcher) Dispatch(ctx context.Context, msg EmailMessage) error {
	select {
	case <-f.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return nil
}

func (f *gatedDispatcher) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

/*
Audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditLog) record(action string, fields map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, fields: fields})
}

func (a *auditLog) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.action == action {
			return true
		}
	}
	return false
}
