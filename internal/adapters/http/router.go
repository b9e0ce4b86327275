package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/invoicing-accounts/internal/application"
)

// Handler serves the /user API on top of the application service.
type Handler struct {
	service *application.Service
	ready   func(ctx context.Context) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithReadiness makes /readyz report check failures as 503.
func WithReadiness(check func(ctx context.Context) error) Option {
	return func(h *Handler) { h.ready = check }
}

func NewHandler(service *application.Service, opts ...Option) *Handler {
	h := &Handler{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.NotFound(handler.notFound)
	r.MethodNotAllowed(handler.notFound)
	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/user", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Get("/verify/code/{email}/{code}", handler.verifyCode)
		r.Get("/resetpassword/{email}", handler.requestPasswordReset)
		r.Get("/verify/password/{key}", handler.verifyPasswordLink)
		r.Post("/resetpassword/{key}/{password}/{confirmPassword}", handler.resetPassword)
		r.Get("/verify/account/{key}", handler.verifyAccount)
		r.Get("/refresh/token", handler.refreshToken)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/profile", handler.profile)
			r.With(requireAuthority("READ:USER")).Get("/get/{id}", handler.getAccount)
		})
	})

	return r
}
