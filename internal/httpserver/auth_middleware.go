package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"chatd/internal/security"
)

type contextKey string

const operatorContextKey contextKey = "operator"

// WithOperator returns a new context carrying the operator name.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorContextKey, operator)
}

// CurrentOperator extracts the operator name from context, if any.
func CurrentOperator(r *http.Request) string {
	if v, ok := r.Context().Value(operatorContextKey).(string); ok {
		return v
	}
	return ""
}

// OperatorMiddleware validates the Bearer token and attaches the operator to
// the context.
func OperatorMiddleware(tokens *security.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid Authorization header"})
				return
			}
			tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

			operator, err := tokens.Operator(tokenStr)
			if err != nil {
				slog.Debug("operator token rejected", "remote", r.RemoteAddr, "err", err)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), operator)))
		})
	}
}
