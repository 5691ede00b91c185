package auth

import (
	"net/http"

	"clan-manager/internal/apperr"
	"clan-manager/internal/httpx"
)

// CanAccess reports whether caller may act on a resource owned by ownerID.
func CanAccess(caller Identity, ownerID string) bool {
	if caller.IsAdmin() {
		return true
	}
	return caller.UserID != "" && caller.UserID == ownerID
}

// Authorize is CanAccess as an error. The denial never says whether the
// resource exists.
func Authorize(caller Identity, ownerID string) error {
	if !CanAccess(caller, ownerID) {
		return apperr.Forbidden()
	}
	return nil
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := IdentityFrom(r.Context())
		if !ok {
			httpx.WriteError(w, r, apperr.Unauthenticated("missing authorization token"))
			return
		}
		if !caller.IsAdmin() {
			httpx.WriteError(w, r, apperr.Forbidden())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func RequireOwnerOrAdmin(ownerOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := IdentityFrom(r.Context())
			if !ok {
				httpx.WriteError(w, r, apperr.Unauthenticated("missing authorization token"))
				return
			}
			if err := Authorize(caller, ownerOf(r)); err != nil {
				httpx.WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
