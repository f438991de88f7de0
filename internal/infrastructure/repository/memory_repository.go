package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/ports"
)

// MemoryStore is an in-process implementation of all three store ports,
// used for development runs without MongoDB and as a test fixture.
type MemoryStore struct {
	mu     sync.RWMutex
	kv     map[string][]byte
	orders map[string]domain.OrderRecord // key: shopID + "/" + externalID
	auth   map[string]domain.ShopAuth
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:     make(map[string][]byte),
		orders: make(map[string]domain.OrderRecord),
		auth:   make(map[string]domain.ShopAuth),
	}
}

var (
	_ ports.KVStore       = (*MemoryStore)(nil)
	_ ports.OrderStore    = (*MemoryStore)(nil)
	_ ports.ShopAuthStore = (*MemoryStore)(nil)
)

func (m *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.kv[key] = v
	return nil
}

func orderKey(shopID, externalID string) string { return shopID + "/" + externalID }

func (m *MemoryStore) UpsertOrder(ctx context.Context, rec domain.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderKey(rec.ShopID, rec.ExternalID)] = rec
	return nil
}

func (m *MemoryStore) CountByStatus(ctx context.Context, shopID string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, rec := range m.orders {
		if shopID != "" && rec.ShopID != shopID {
			continue
		}
		counts[rec.Status]++
	}
	return counts, nil
}

// GetOrder returns a mirrored order, or (nil, nil) when absent. Not part of
// the OrderStore port; tests use it to inspect last-write-wins outcomes.
func (m *MemoryStore) GetOrder(shopID, externalID string) *domain.OrderRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.orders[orderKey(shopID, externalID)]
	if !ok {
		return nil
	}
	return &rec
}

func (m *MemoryStore) GetShopAuth(ctx context.Context, shopID string) (*domain.ShopAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auth[shopID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// PutShopAuth seeds a shop's auth material.
func (m *MemoryStore) PutShopAuth(a domain.ShopAuth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth[a.ShopID] = a
}

func (m *MemoryStore) RotateRefreshToken(ctx context.Context, shopID string, sealedToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auth[shopID]
	if !ok {
		return fmt.Errorf("shop auth not found: %s", shopID)
	}
	a.RefreshToken = sealedToken
	m.auth[shopID] = a
	return nil
}

func (m *MemoryStore) ListShopIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.auth))
	for id := range m.auth {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
