package selector

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// StickyMap pins a session id to a provider id for as long as the entry
// stays within its TTL. It is read on every request and written only on
// a fresh assignment.
type StickyMap struct {
	mu      sync.RWMutex
	entries map[string]stickyEntry
	ttl     time.Duration
	sf      singleflight.Group
	now     func() time.Time
}

type stickyEntry struct {
	providerID int64
	expiresAt  time.Time
}

// defaultStickyTTL is not specified by the source system; thirty minutes
// balances session affinity against a provider's sticky slot going stale
// after a client disconnects for good.
const defaultStickyTTL = 30 * time.Minute

func NewStickyMap() *StickyMap {
	return &StickyMap{
		entries: make(map[string]stickyEntry),
		ttl:     defaultStickyTTL,
		now:     time.Now,
	}
}

// Get returns the sticky provider id for sessionID, if one exists and has
// not expired.
func (m *StickyMap) Get(sessionID string) (int64, bool) {
	if sessionID == "" {
		return 0, false
	}
	m.mu.RLock()
	entry, ok := m.entries[sessionID]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.providerID, true
}

// Set records a fresh sticky assignment, resetting its TTL.
func (m *StickyMap) Set(sessionID string, providerID int64) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	m.entries[sessionID] = stickyEntry{providerID: providerID, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

// GetOrAssign returns the existing sticky provider for sessionID, or runs
// assign and records its result. Concurrent first requests for the same
// brand-new session id collapse onto a single assign() call via
// singleflight, so they never race into two different providers.
func (m *StickyMap) GetOrAssign(sessionID string, assign func() (int64, error)) (int64, error) {
	if id, ok := m.Get(sessionID); ok {
		return id, nil
	}
	v, err, _ := m.sf.Do(sessionID, func() (any, error) {
		if id, ok := m.Get(sessionID); ok {
			return id, nil
		}
		id, err := assign()
		if err != nil {
			return int64(0), err
		}
		m.Set(sessionID, id)
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Evict removes expired entries. Callers may run this periodically; it is
// also applied lazily on Get, so calling it is an optimization, not a
// correctness requirement.
func (m *StickyMap) Evict() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, id)
		}
	}
}
