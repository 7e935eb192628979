package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatd/internal/config"
	"chatd/internal/security"
	"chatd/internal/service"
	"chatd/internal/session"
)

// Console is the slice of the session manager the operator API drives.
type Console interface {
	ExecuteConsole(ctx context.Context, line string) []string
	Online() []session.OnlineUser
}

// NewRouter constructs the operator HTTP router. ws, when non-nil, is mounted
// at /ws as the WebSocket chat transport.
func NewRouter(cfg *config.Config, console Console, audit *service.AuditService, tokens *security.TokenService, ws http.Handler) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": cfg.AppName + " operator API", "chat": cfg.ChatAddr()})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// upgraded connections outlive the request; no timeout here
	if ws != nil {
		r.Get("/ws", ws.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/online", handleOnline(console))

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(OperatorMiddleware(tokens))

			r.Post("/console", handleConsole(console, audit))
			r.Get("/audit", handleAudit(audit))
		})
	})

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
