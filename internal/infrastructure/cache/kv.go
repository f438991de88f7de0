package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mercata-core-vendor-layer/internal/ports"
)

// KVTier stores cache entries in the shared persistent key/value store, so a
// restarted or sibling process can serve a warm result. Expiry is checked on
// read because the underlying store has no native TTL.
type KVTier struct {
	kv     ports.KVStore
	prefix string
	now    func() time.Time
}

type kvEnvelope struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewKVTier creates a tier over the persistent store under a key prefix.
func NewKVTier(kv ports.KVStore, prefix string) *KVTier {
	return &KVTier{kv: kv, prefix: prefix, now: time.Now}
}

var _ ports.CacheTier = (*KVTier)(nil)

func (t *KVTier) Name() string { return "kv" }

func (t *KVTier) key(key string) string { return t.prefix + ":" + key }

func (t *KVTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := t.kv.Get(ctx, t.key(key))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var env kvEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("corrupt cache envelope for %s: %w", key, err)
	}
	if t.now().After(env.ExpiresAt) {
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (t *KVTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	env := kvEnvelope{Value: value, ExpiresAt: t.now().Add(ttl)}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}
	return t.kv.Upsert(ctx, t.key(key), raw)
}
