package security

import (
	"net/http"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"clan-manager/internal/apperr"
	"clan-manager/internal/clientip"
	"clan-manager/internal/httpx"
	"clan-manager/internal/observability"
)

const blockedMessage = "access from your address has been blocked"

type BlockedAddress struct {
	IP        string     `json:"ip"`
	Reason    string     `json:"reason,omitempty"`
	BlockedAt time.Time  `json:"blocked_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (b BlockedAddress) expired(now time.Time) bool {
	return b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// Blacklist is the set of client addresses refused before any other
// processing. Entries are permanent unless blocked with a TTL.
type Blacklist struct {
	mu      sync.RWMutex
	entries map[string]BlockedAddress
	now     func() time.Time
}

func NewBlacklist() *Blacklist {
	return &Blacklist{
		entries: make(map[string]BlockedAddress),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (b *Blacklist) WithClock(now func() time.Time) *Blacklist {
	b.now = now
	return b
}

// Block adds ip to the list. A ttl of zero blocks it permanently; blocking an
// address again replaces the previous entry.
func (b *Blacklist) Block(ip, reason string, ttl time.Duration) (BlockedAddress, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return BlockedAddress{}, apperr.Validation("invalid ip address")
	}
	normalized := addr.Unmap().WithZone("").String()
	if ttl < 0 {
		return BlockedAddress{}, apperr.Validation("ttl must not be negative")
	}

	now := b.now()
	entry := BlockedAddress{IP: normalized, Reason: reason, BlockedAt: now}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	b.mu.Lock()
	b.entries[normalized] = entry
	b.mu.Unlock()

	return entry, nil
}

func (b *Blacklist) Unblock(ip string) bool {
	normalized := clientip.Normalize(ip)
	if normalized == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[normalized]
	if !ok {
		return false
	}
	delete(b.entries, normalized)
	return !entry.expired(b.now())
}

func (b *Blacklist) IsBlocked(ip string) bool {
	normalized := clientip.Normalize(ip)
	if normalized == "" {
		return false
	}

	b.mu.RLock()
	entry, ok := b.entries[normalized]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if entry.expired(b.now()) {
		b.mu.Lock()
		if current, still := b.entries[normalized]; still && current.expired(b.now()) {
			delete(b.entries, normalized)
		}
		b.mu.Unlock()
		return false
	}

	return true
}

// List returns the active entries ordered by address.
func (b *Blacklist) List() []BlockedAddress {
	now := b.now()

	b.mu.RLock()
	out := make([]BlockedAddress, 0, len(b.entries))
	for _, entry := range b.entries {
		if !entry.expired(now) {
			out = append(out, entry)
		}
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

// Sweep drops expired entries and returns how many were removed.
func (b *Blacklist) Sweep() int {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for ip, entry := range b.entries {
		if entry.expired(now) {
			delete(b.entries, ip)
			removed++
		}
	}
	return removed
}

func (b *Blacklist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r)
		if b.IsBlocked(ip) {
			observability.LoggerFrom(r.Context()).Warn("blocked_request", map[string]any{
				"ip":   ip,
				"path": r.URL.Path,
			})
			httpx.WriteError(w, r, apperr.Blocked(blockedMessage))
			return
		}

		next.ServeHTTP(w, r)
	})
}
