package ports

import (
	"context"
	"time"
)

// CacheTier is one level of the multi-tier cache. Implementations enforce
// their own TTL: Get must report a miss for an expired entry.
type CacheTier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SnapshotCache is the multi-tier front used for aggregate snapshots.
// Writes are best-effort beyond the in-process tier and therefore return
// nothing; reads repopulate faster tiers bounded by remainingTTL.
type SnapshotCache interface {
	Read(ctx context.Context, key string, remainingTTL time.Duration) ([]byte, bool)
	Write(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// EncryptionService seals vendor secrets before they reach persistent storage.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
