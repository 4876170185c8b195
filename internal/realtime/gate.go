package realtime

import (
	"fmt"
	"net/http"

	"github.com/Platform-LSS/beneficiarios/internal/auth"
)

// TokenParam is the query parameter carrying the credential. EventSource
// cannot send custom headers, so the stream takes it from the URL.
const TokenParam = "token"

// Gate admits stream requests that carry a valid credential.
type Gate struct {
	verifier auth.Verifier
}

// NewGate creates a Gate backed by verifier.
func NewGate(verifier auth.Verifier) *Gate {
	return &Gate{verifier: verifier}
}

// Authenticate returns the caller's claims. Failures wrap ErrUnauthenticated.
// A "Bearer " prefix on the parameter value is accepted.
func (g *Gate) Authenticate(r *http.Request) (*auth.Claims, error) {
	raw := r.URL.Query().Get(TokenParam)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	if token, ok := auth.BearerToken(raw); ok {
		raw = token
	}
	claims, err := g.verifier.Verify(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return claims, nil
}
