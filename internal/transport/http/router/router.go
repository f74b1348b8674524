package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type ResetHandler interface {
	PasswordResetRequest(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	RequestIDMW func(http.Handler) http.Handler
	MetricsMW   func(http.Handler) http.Handler

	Health  HealthHandler
	Reset   ResetHandler
	Metrics http.Handler

	// RLReset guards the reset route; nil disables limiting.
	RLReset func(http.Handler) http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Reset == nil {
		return nil, fmt.Errorf("nil Reset handler")
	}

	r := chi.NewRouter()
	if deps.RequestIDMW != nil {
		r.Use(deps.RequestIDMW)
	}
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if deps.MetricsMW != nil {
		r.Use(deps.MetricsMW)
	}

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RLReset != nil {
			r.With(deps.RLReset).Post("/password-reset", deps.Reset.PasswordResetRequest)
		} else {
			r.Post("/password-reset", deps.Reset.PasswordResetRequest)
		}
	})

	return r, nil
}
