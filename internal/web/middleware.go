package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Platform-LSS/beneficiarios/internal/auth"
)

type claimsKey struct{}

// requestLogger logs each HTTP request with duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}

// requireAuth admits requests with a valid "Authorization: Bearer" credential
// and stores the claims in the request context.
func (ws *WebServer) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token de autenticação ausente")
			return
		}
		claims, err := ws.verifier.Verify(token)
		if err != nil {
			slog.Debug("rejected credential", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "Token de autenticação inválido")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// userID returns the authenticated caller; requireAuth guarantees it is set.
func userID(r *http.Request) string {
	claims, _ := r.Context().Value(claimsKey{}).(*auth.Claims)
	if claims == nil {
		return ""
	}
	return claims.Identity()
}
