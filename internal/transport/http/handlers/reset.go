package http_handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/baechuer/real-time-ressys/services/reset-service/internal/application/reset"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/transport/http/dto"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/reset-service/internal/transport/http/response"
)

type ResetIssuer interface {
	Execute(ctx context.Context, req reset.IssueRequest) (reset.Receipt, error)
}

type ResetHandlerConfig struct {
	AllowedHosts     []string
	AllowedProtocols []string
	// ConcealUnknownEmail answers email_not_found with the normal acknowledgement.
	ConcealUnknownEmail bool
}

type ResetHandler struct {
	svc     ResetIssuer
	hosts   map[string]struct{}
	protos  map[string]struct{}
	conceal bool
}

func NewResetHandler(svc ResetIssuer, cfg ResetHandlerConfig) *ResetHandler {
	return &ResetHandler{
		svc:     svc,
		hosts:   toSet(cfg.AllowedHosts),
		protos:  toSet(cfg.AllowedProtocols),
		conceal: cfg.ConcealUnknownEmail,
	}
}

// PasswordResetRequest handles POST /api/password-reset.
func (h *ResetHandler) PasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "rejected", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, "rejected", err)
		return
	}

	host := strings.ToLower(r.Host)
	if _, ok := h.hosts[host]; !ok {
		h.fail(w, r, "rejected", domain.ErrInvalidField("host", "host not allowed"))
		return
	}
	proto := requestProtocol(r)
	if _, ok := h.protos[proto]; !ok {
		h.fail(w, r, "rejected", domain.ErrInvalidField("protocol", "protocol not allowed"))
		return
	}

	receipt, err := h.svc.Execute(r.Context(), reset.IssueRequest{
		Email:    req.Email,
		Host:     host,
		Protocol: proto,
	})
	if err != nil {
		if h.conceal && domain.Is(err, "email_not_found") {
			middleware.PasswordResetRequestsTotal.WithLabelValues("email_not_found").Inc()
			response.OK(w, dto.PasswordResetResponse{Message: reset.Confirmation})
			return
		}
		h.fail(w, r, outcomeOf(err), err)
		return
	}

	middleware.PasswordResetRequestsTotal.WithLabelValues("issued").Inc()
	response.OK(w, dto.PasswordResetResponse{Message: receipt.Message})
}

func (h *ResetHandler) fail(w http.ResponseWriter, r *http.Request, outcome string, err error) {
	middleware.PasswordResetRequestsTotal.WithLabelValues(outcome).Inc()
	if outcome != "rejected" && outcome != "email_not_found" {
		logger.WithCtx(r.Context()).Error().Err(err).Str("outcome", outcome).Msg("password reset failed")
	}
	response.WriteError(w, r, err)
}

// requestProtocol trusts X-Forwarded-Proto from the fronting proxy.
func requestProtocol(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
		return "https"
	}
	return "http"
}

func outcomeOf(err error) string {
	for _, code := range []string{"email_not_found", "storage_failed", "token_sign_failed", "hash_failed", "random_failed", "db_unavailable"} {
		if domain.Is(err, code) {
			return code
		}
	}
	return "error"
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}
