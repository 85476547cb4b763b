package http

import (
	"net/http"

	"github.com/bioapp/auth-service/internal/application"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/go-chi/chi/v5"
)

// Handler is the HTTP adapter entrypoint for auth use-cases.
// It holds the application service plus the general-traffic limiter the
// middleware stack needs; everything else stays behind the service.
type Handler struct {
	service *application.Service
	limiter ports.RateLimiter
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, limiter ports.RateLimiter) *Handler {
	return &Handler{service: service, limiter: limiter}
}

// NewRouter registers the HTTP routes and middleware stack.
// Centralizing routes here keeps auth and error behavior consistent
// across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.rateLimitMiddleware(ports.LimitClassGeneral))
			r.Post("/register", handler.register)
			// Login consumes the auth-class limit inside the service, so
			// only the general gate applies at the edge.
			r.Post("/login", handler.login)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.rateLimitMiddleware(ports.LimitClassGeneral))
			r.Use(handler.authMiddleware)
			r.Get("/me", handler.me)
			r.Get("/csrf", handler.csrfToken)
			r.Get("/login-history", handler.loginHistory)
			r.Get("/registrants", handler.listRegistrants)

			r.Group(func(r chi.Router) {
				r.Use(handler.csrfMiddleware)
				r.Post("/logout", handler.logout)
			})
		})
	})

	return r
}
