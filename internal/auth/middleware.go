package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clan-manager/internal/apperr"
	"clan-manager/internal/httpx"
)

type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// Authenticate requires a valid bearer token and stores its identity in the
// request context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				httpx.WriteError(w, r, apperr.Unauthenticated("missing authorization token"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				httpx.WriteError(w, r, apperr.Unauthenticated("invalid authorization format"))
				return
			}

			identity, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					httpx.WriteError(w, r, apperr.Unauthenticated("token expired"))
					return
				}
				httpx.WriteError(w, r, apperr.Unauthenticated("invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
