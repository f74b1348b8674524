package reset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
)

type harness struct {
	users   *fakeFinder
	owners  *fakeFinder
	codes   *fakeCodes
	hasher  *fakeHasher
	records *fakeRecords
	signer  *fakeSigner
	mailer  *fakeDispatcher
	audit   *auditLog
	now     time.Time

	svc *Service
}

func newHarness() *harness {
	h := &harness{
		users:   newFakeFinder(domain.PrimaryUser{ID: "u1", Email: "user@example.com", Username: "Jane"}),
		owners:  newFakeFinder(domain.OrganizationOwner{ID: "o1", Email: "owner@example.com", Name: "Acme Owner"}),
		codes:   &fakeCodes{},
		hasher:  &fakeHasher{},
		records: &fakeRecords{},
		signer:  &fakeSigner{},
		mailer:  newFakeDispatcher(),
		audit:   &auditLog{},
		now:     time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC),
	}

	ids := 0
	h.svc = NewService(Deps{
		Resolver:   NewResolver(h.users, h.owners),
		Codes:      h.codes,
		Hasher:     h.hasher,
		Records:    h.records,
		Signer:     h.signer,
		Dispatcher: h.mailer,
		NewID: func() string {
			ids++
			return fmt.Sprintf("rec-%d", ids)
		},
	}, Config{DispatchTimeout: time.Second}).
		WithClock(func() time.Time { return h.now }).
		WithAudit(h.audit.record)
	return h
}

func TestExecute_PrimaryUser_LinkHasExactForm(t *testing.T) {
	h := newHarness()

	rcpt, err := h.svc.Execute(context.Background(), IssueRequest{
		Email:    "user@example.com",
		Host:     "api.example.com",
		Protocol: "https",
	})
	require.NoError(t, err)
	assert.Equal(t, Confirmation, rcpt.Message)

	require.Len(t, h.signer.signed, 1)
	claims := h.signer.signed[0]
	assert.Equal(t, "u1", claims.AccountID)

	token := "tok.u1." + claims.Code
	wantLink := "https://api.example.com/api/password-reset-link?token=" + token + "&id=u1"

	msg, ok := h.mailer.wait(time.Second)
	require.True(t, ok, "dispatcher was not called")
	assert.Equal(t, "user@example.com", msg.To)
	assert.Equal(t, ResetEmailSubject, msg.Subject)
	assert.Contains(t, msg.HTML, strings.ReplaceAll(wantLink, "&", "&amp;"))
	assert.Contains(t, msg.HTML, "Hi Jane,")
	assert.Equal(t, wantLink, msg.Link)
	assert.Equal(t, "u1", msg.AccountID)
}

func TestExecute_OwnerAccount(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "owner@example.com", Host: "h", Protocol: "http"})
	require.NoError(t, err)

	recs := h.records.snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, "o1", recs[0].AccountID)
	assert.Equal(t, domain.KindOrganizationOwner, recs[0].AccountKind)
}

func TestExecute_ExpiryIsExactly300Seconds(t *testing.T) {
	h := newHarness()

	rcpt, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.NoError(t, err)

	recs := h.records.snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, h.now, recs[0].CreatedAt)
	assert.Equal(t, 300*time.Second, recs[0].ExpiresAt.Sub(recs[0].CreatedAt))
	assert.Equal(t, recs[0].ExpiresAt, rcpt.ExpiresAt)
}

func TestExecute_StoresOnlyHashedCode(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.NoError(t, err)

	recs := h.records.snapshot()
	require.Len(t, recs, 1)
	code := h.signer.signed[0].Code

	assert.NotEqual(t, code, recs[0].HashedCode)
	assert.NotContains(t, recs[0].HashedCode, code)
	assert.NoError(t, h.hasher.Compare(recs[0].HashedCode, code))
	assert.Equal(t, "rec-1", recs[0].ID)
}

func TestExecute_EmailNotFound_NoSideEffects(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "ghost@example.com", Host: "h", Protocol: "https"})
	require.Error(t, err)
	assert.True(t, domain.Is(err, "email_not_found"), "got %v", err)

	assert.Equal(t, 0, h.codes.calls)
	assert.Equal(t, 0, h.hasher.calls)
	assert.Empty(t, h.records.snapshot())
	assert.Equal(t, 0, h.signer.callCount())
	_, sent := h.mailer.wait(50 * time.Millisecond)
	assert.False(t, sent)
	assert.True(t, h.audit.has("password_reset.email_not_found"))
}

func TestExecute_StorageFailure_SignerNotCalled(t *testing.T) {
	h := newHarness()
	h.records.createErr = domain.ErrDBUnavailable(errors.New("connection reset"))

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.Error(t, err)
	assert.True(t, domain.Is(err, "storage_failed"), "got %v", err)

	assert.Equal(t, 0, h.signer.callCount())
	_, sent := h.mailer.wait(50 * time.Millisecond)
	assert.False(t, sent)
	assert.True(t, h.audit.has("password_reset.storage_failed"))
}

func TestExecute_SigningFailure_DeletesRecord(t *testing.T) {
	h := newHarness()
	h.signer.err = errors.New("key unavailable")

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.Error(t, err)
	assert.True(t, domain.Is(err, "token_sign_failed"), "got %v", err)

	require.Len(t, h.records.deleted, 1)
	assert.Equal(t, h.records.created[0].ID, h.records.deleted[0].ID)
	_, sent := h.mailer.wait(50 * time.Millisecond)
	assert.False(t, sent)
}

func TestExecute_SigningFailure_CleanupErrorIsAudited(t *testing.T) {
	h := newHarness()
	h.signer.err = domain.ErrTokenSignFailed(errors.New("boom"))
	h.records.deleteErr = errors.New("delete failed")

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.Error(t, err)
	assert.True(t, domain.Is(err, "token_sign_failed"))
	assert.True(t, h.audit.has("password_reset.cleanup_failed"))
}

func TestExecute_SignerValidationErrorIsSigningFailure(t *testing.T) {
	h := newHarness()
	h.signer.err = domain.ErrMissingField("code")

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.Error(t, err)
	assert.True(t, domain.Is(err, "token_sign_failed"), "got %v", err)

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.True(t, domain.Is(de.Cause, "missing_field"))
	require.Len(t, h.records.deleted, 1)
}

func TestExecute_GeneratorAndHasherFailures(t *testing.T) {
	t.Run("generator", func(t *testing.T) {
		h := newHarness()
		h.codes.err = errors.New("entropy exhausted")

		_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
		assert.True(t, domain.Is(err, "random_failed"), "got %v", err)
		assert.Empty(t, h.records.snapshot())
	})

	t.Run("hasher", func(t *testing.T) {
		h := newHarness()
		h.hasher.err = errors.New("cost too high")

		_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
		assert.True(t, domain.Is(err, "hash_failed"), "got %v", err)
		assert.Empty(t, h.records.snapshot())
	})
}

func TestExecute_DispatchFailureIsNotSurfaced(t *testing.T) {
	h := newHarness()
	h.mailer.err = errors.New("smtp down")

	rcpt, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.NoError(t, err)
	assert.Equal(t, Confirmation, rcpt.Message)

	_, ok := h.mailer.wait(time.Second)
	require.True(t, ok)
	assert.Eventually(t, func() bool { return h.audit.has("password_reset.dispatch_failed") }, time.Second, 10*time.Millisecond)
}

func TestExecute_DispatchSurvivesRequestCancellation(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := h.svc.Execute(ctx, IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.NoError(t, err)
	cancel()

	_, ok := h.mailer.wait(time.Second)
	assert.True(t, ok)
}

func TestExecute_RepeatedRequestsCreateIndependentRecords(t *testing.T) {
	h := newHarness()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := map[string]bool{}
	h.svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		id := fmt.Sprintf("rec-%d", len(ids)+1)
		ids[id] = true
		return id
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recs := h.records.snapshot()
	assert.Len(t, recs, 10)
	codes := map[string]bool{}
	for _, c := range h.signer.signed {
		codes[c.Code] = true
	}
	assert.Len(t, codes, 10, "each issuance draws its own code")
}

func TestDrain_WaitsForDetachedDispatch(t *testing.T) {
	h := newHarness()
	gated := newGatedDispatcher()
	h.svc.mailer = gated

	_, err := h.svc.Execute(context.Background(), IssueRequest{Email: "user@example.com", Host: "h", Protocol: "https"})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.svc.Drain(short), context.DeadlineExceeded)
	assert.Equal(t, 0, gated.delivered())

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gated.release)
	}()

	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.NoError(t, h.svc.Drain(ctx))
	assert.Equal(t, 1, gated.delivered())
	assert.True(t, h.audit.has("password_reset.dispatched"))
}

func TestDrain_NoDispatchesReturnsImmediately(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.svc.Drain(context.Background()))
}
