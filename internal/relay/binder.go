package relay

import (
	"fmt"
	"net/http"
)

// TokenVerifier checks an opaque signed credential and resolves the
// identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// Binder extracts an identity from the connection handshake. Verification
// failure is a per-connection rejection, never fatal: the connection stays
// registered unbound and only ever receives broadcasts.
type Binder struct {
	verifier TokenVerifier
}

func NewBinder(verifier TokenVerifier) *Binder {
	return &Binder{verifier: verifier}
}

// Extract parses the `token` cookie from the upgrade request and
// delegates verification. Returns ErrNoCredential when the cookie is
// absent or empty, ErrAuthRejected when verification fails.
func (b *Binder) Extract(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie("token")
	if err != nil || cookie.Value == "" {
		return Identity{}, ErrNoCredential
	}

	id, err := b.verifier.Verify(cookie.Value)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	return id, nil
}
