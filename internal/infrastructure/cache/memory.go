package cache

import (
	"context"
	"sync"
	"time"

	"mercata-core-vendor-layer/internal/ports"
)

// MemoryTier is the in-process cache tier. It is authoritative for the
// current process: multi-tier writes land here first.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryTier creates an empty in-process tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string]memoryEntry), now: time.Now}
}

var _ ports.CacheTier = (*MemoryTier)(nil)

func (t *MemoryTier) Name() string { return "memory" }

func (t *MemoryTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if t.now().After(e.expiresAt) {
		t.mu.Lock()
		delete(t.entries, key)
		t.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (t *MemoryTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t.mu.Lock()
	t.entries[key] = memoryEntry{value: value, expiresAt: t.now().Add(ttl)}
	t.mu.Unlock()
	return nil
}

// Delete drops an entry, used by the force-recompute path.
func (t *MemoryTier) Delete(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}
