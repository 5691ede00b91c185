package security

import (
	"context"
	"sync"
	"time"
)

// Counter is the state of one fixed window.
type Counter struct {
	Hits        int
	WindowStart time.Time
}

// ResetAt is when the window closes for a counter of the given length.
func (c Counter) ResetAt(window time.Duration) time.Time {
	return c.WindowStart.Add(window)
}

// CounterStore keeps fixed-window hit counters by key. A window that has fully
// elapsed reads as empty, and the next Hit opens a new one at now. Hit and
// Release must be atomic per key.
type CounterStore interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error)
	// Release takes back one hit from the window that started at windowStart.
	// It is a no-op once that window has been replaced.
	Release(ctx context.Context, key string, windowStart time.Time) error
	Reset(ctx context.Context, key string) error
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

func expired(start time.Time, window time.Duration, now time.Time) bool {
	return !now.Before(start.Add(window))
}

type memoryEntry struct {
	hits        int
	windowStart time.Time
	window      time.Duration
}

// MemoryStore is a process-local CounterStore. State is lost on restart and is
// not shared between instances.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		maxEntries: 10000,
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || expired(entry.windowStart, entry.window, now) {
		if !ok && len(s.entries) >= s.maxEntries {
			s.purgeLocked(now)
		}
		entry = &memoryEntry{windowStart: now, window: window}
		s.entries[key] = entry
	}
	entry.hits++

	return Counter{Hits: entry.hits, WindowStart: entry.windowStart}, nil
}

func (s *MemoryStore) Release(_ context.Context, key string, windowStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && entry.windowStart.Equal(windowStart) && entry.hits > 0 {
		entry.hits--
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.purgeLocked(now), nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *MemoryStore) purgeLocked(now time.Time) int64 {
	var removed int64
	for key, entry := range s.entries {
		if expired(entry.windowStart, entry.window, now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
