// Package clientip resolves the address a request originated from. The value is
// computed once per request by Middleware and read everywhere else with FromRequest,
// so the blacklist, the limiters and the request log always agree on it.
package clientip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type contextKey struct{}

// Middleware stores the resolved client address in the request context.
// X-Forwarded-For is honoured only when trustProxy is set; otherwise a client
// could pick its own address and walk around the blacklist.
func Middleware(trustProxy bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := Resolve(r, trustProxy)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, ip)))
	})
}

// FromRequest returns the address stored by Middleware, falling back to the
// connection's remote address.
func FromRequest(r *http.Request) string {
	if ip, ok := r.Context().Value(contextKey{}).(string); ok && ip != "" {
		return ip
	}
	return Resolve(r, false)
}

func Resolve(r *http.Request, trustProxy bool) string {
	if trustProxy {
		forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
		if forwarded != "" {
			first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if first != "" {
				return Normalize(first)
			}
		}
	}

	if r.RemoteAddr == "" {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return Normalize(r.RemoteAddr)
	}
	return Normalize(host)
}

// Normalize canonicalises a textual IP (IPv4-mapped IPv6 becomes IPv4). Values
// that do not parse are returned trimmed but otherwise unchanged.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return raw
	}
	return addr.Unmap().WithZone("").String()
}
