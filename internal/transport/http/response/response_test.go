package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
	pkgctx "github.com/baechuer/real-time-ressys/services/reset-service/internal/pkg/context"
)

func newReqWithBody(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}

	require.NoError(t, DecodeJSON(newReqWithBody(`{"email":"a@b.c"}`), &dst))
	assert.Equal(t, "a@b.c", dst.Email)

	for name, body := range map[string]string{
		"malformed": `{"email":`,
		"trailing":  `{"email":"a"}{}`,
		"garbage":   `{"email":"a"} x`,
		"empty":     ``,
	} {
		t.Run(name, func(t *testing.T) {
			err := DecodeJSON(newReqWithBody(body), &dst)
			assert.True(t, domain.Is(err, "invalid_json"), "got %v", err)
		})
	}
}

func TestDecodeJSON_OversizedBody(t *testing.T) {
	var dst map[string]string
	body := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	err := DecodeJSON(newReqWithBody(body), &dst)
	assert.True(t, domain.Is(err, "invalid_json"))
}

func TestWriteError_DomainKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrMissingField("email"), http.StatusBadRequest, "missing_field"},
		{domain.ErrTokenInvalid(), http.StatusUnauthorized, "token_invalid"},
		{domain.ErrEmailNotFound(), http.StatusNotFound, "email_not_found"},
		{domain.ErrRateLimited("reset"), http.StatusTooManyRequests, "rate_limited"},
		{domain.ErrStorageFailed(errors.New("x")), http.StatusServiceUnavailable, "storage_failed"},
		{domain.ErrTokenSignFailed(errors.New("x")), http.StatusInternalServerError, "token_sign_failed"},
		{errors.New("raw"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(pkgctx.WithRequestID(context.Background(), "rid-1"))
			rr := httptest.NewRecorder()

			WriteError(rr, req, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Error.Code)
			assert.Equal(t, "rid-1", body.Error.RequestID)
			assert.NotContains(t, rr.Body.String(), "raw", "causes must not leak")
		})
	}
}

func TestOK_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	OK(rr, map[string]string{"message": "email sent"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"message":"email sent"}}`, rr.Body.String())
}
