package cache

import (
	"context"
	"time"

	"mercata-core-vendor-layer/internal/metrics"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/rs/zerolog"
)

// MultiTier fronts a ranked list of cache tiers. Reads walk the tiers in
// order and repopulate the memory tier on a lower-tier hit; writes land in
// memory first and then write through best-effort; a downstream tier
// failure never fails the write.
type MultiTier struct {
	memory *MemoryTier
	rest   []ports.CacheTier
	logger zerolog.Logger
}

var _ ports.SnapshotCache = (*MultiTier)(nil)

// NewMultiTier creates a multi-tier cache. rest is ordered fastest-first
// (shared persistent store, then distributed cache); nil entries are skipped.
func NewMultiTier(memory *MemoryTier, logger zerolog.Logger, rest ...ports.CacheTier) *MultiTier {
	tiers := make([]ports.CacheTier, 0, len(rest))
	for _, t := range rest {
		if t != nil {
			tiers = append(tiers, t)
		}
	}
	return &MultiTier{memory: memory, rest: tiers, logger: logger}
}

// Read returns the first hit across tiers. remainingTTL bounds the memory
// repopulation on a lower-tier hit so the entry cannot outlive its original
// write by more than the metric's TTL.
func (c *MultiTier) Read(ctx context.Context, key string, remainingTTL time.Duration) ([]byte, bool) {
	if val, ok, err := c.memory.Get(ctx, key); err == nil && ok {
		metrics.CacheRequests.WithLabelValues(c.memory.Name(), "hit").Inc()
		return val, true
	}
	metrics.CacheRequests.WithLabelValues(c.memory.Name(), "miss").Inc()

	for _, tier := range c.rest {
		val, ok, err := tier.Get(ctx, key)
		if err != nil {
			metrics.CacheRequests.WithLabelValues(tier.Name(), "error").Inc()
			c.logger.Warn().Err(err).Str("tier", tier.Name()).Str("key", key).Msg("Cache tier read failed")
			continue
		}
		if !ok {
			metrics.CacheRequests.WithLabelValues(tier.Name(), "miss").Inc()
			continue
		}
		metrics.CacheRequests.WithLabelValues(tier.Name(), "hit").Inc()
		if remainingTTL > 0 {
			_ = c.memory.Set(ctx, key, val, remainingTTL)
		}
		return val, true
	}
	return nil, false
}

// Write updates memory immediately, then writes through to the slower tiers.
func (c *MultiTier) Write(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = c.memory.Set(ctx, key, value, ttl)
	for _, tier := range c.rest {
		if err := tier.Set(ctx, key, value, ttl); err != nil {
			metrics.CacheWriteFailures.WithLabelValues(tier.Name()).Inc()
			c.logger.Warn().Err(err).Str("tier", tier.Name()).Str("key", key).Msg("Cache tier write failed")
		}
	}
}

// Invalidate drops the in-process entry and overwrites the slower tiers with
// an already-expired envelope so their next read misses too.
func (c *MultiTier) Invalidate(ctx context.Context, key string) {
	c.memory.Delete(key)
	for _, tier := range c.rest {
		if err := tier.Set(ctx, key, nil, time.Nanosecond); err != nil {
			c.logger.Warn().Err(err).Str("tier", tier.Name()).Str("key", key).Msg("Cache tier invalidate failed")
		}
	}
}
