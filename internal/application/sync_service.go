package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/metrics"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// lookbackBaseline seeds the first-ever sync window for a shop.
	lookbackBaseline = 120 * 24 * time.Hour
	// overlapWindow extends the window backwards to tolerate clock skew and
	// vendor writes not yet visible at the cursor's exact timestamp.
	overlapWindow = 60 * time.Second

	cursorKeyPrefix = "sync:cursor:"
)

// SyncOptions tune one sync invocation.
type SyncOptions struct {
	// Statuses filters the vendor query; empty means unfiltered.
	Statuses []string
	// LookbackDays, when set, pulls the window start back to now-LookbackDays
	// even if the cursor is more recent, forcing a deeper resync.
	LookbackDays int
	// MaxPages caps pages per shop; 0 means unlimited.
	MaxPages int
	// Fanout bounds concurrent shops in a sweep; 0 uses the service default.
	Fanout int
}

// SyncService is the incremental order-sync engine. Each shop advances an
// independent persisted watermark; shops never block one another.
type SyncService struct {
	resolver ports.CredentialResolver
	pager    ports.Paginator
	orders   ports.OrderStore
	kv       ports.KVStore
	logger   zerolog.Logger

	ordersPath string
	itemsKey   string
	fanout     int
	now        func() time.Time
}

// NewSyncService creates the sync engine. ordersPath and itemsKey name the
// vendor order-list endpoint and its response items key.
func NewSyncService(
	resolver ports.CredentialResolver,
	pager ports.Paginator,
	orders ports.OrderStore,
	kv ports.KVStore,
	ordersPath string,
	itemsKey string,
	fanout int,
	logger zerolog.Logger,
) *SyncService {
	if fanout <= 0 {
		fanout = 4
	}
	return &SyncService{
		resolver:   resolver,
		pager:      pager,
		orders:     orders,
		kv:         kv,
		ordersPath: ordersPath,
		itemsKey:   itemsKey,
		fanout:     fanout,
		logger:     logger,
		now:        time.Now,
	}
}

// RunIncrementalSync syncs the given shops with bounded concurrency. A nil
// or empty shopIDs syncs every shop with stored auth. Per-shop failures land
// in that shop's result entry; the sweep itself only fails when no shop list
// can be established.
func (s *SyncService) RunIncrementalSync(ctx context.Context, shopIDs []string, opts SyncOptions) (map[string]domain.ShopSyncResult, error) {
	if len(shopIDs) == 0 {
		ids, err := s.resolver.ListShopIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list shops: %w", err)
		}
		shopIDs = ids
	}

	fanout := opts.Fanout
	if fanout <= 0 {
		fanout = s.fanout
	}

	results := make(map[string]domain.ShopSyncResult, len(shopIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanout)
	for _, shopID := range shopIDs {
		shopID := shopID
		g.Go(func() error {
			res := s.SyncShop(gctx, shopID, opts)
			mu.Lock()
			results[shopID] = res
			mu.Unlock()
			// Failure isolation: a shop's error stays in its entry.
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// SyncShop runs one shop's incremental sync. The cursor is persisted only
// after the page sequence ends and only to the maximum updatedAt actually
// observed; a page-fetch error leaves it untouched so the next run retries
// the same window (safe, because upserts are idempotent).
func (s *SyncService) SyncShop(ctx context.Context, shopID string, opts SyncOptions) domain.ShopSyncResult {
	runID := uuid.NewString()
	started := s.now()
	log := s.logger.With().Str("runId", runID).Str("shopId", shopID).Logger()

	res := domain.ShopSyncResult{RunID: runID, ShopID: shopID}

	auth, err := s.resolver.Resolve(ctx, shopID)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("credential_missing").Inc()
		log.Warn().Err(err).Msg("Sync skipped: unusable credentials")
		res.Error = errLabel(err)
		return res
	}

	cursor, err := s.loadCursor(ctx, shopID)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Failed to load sync cursor")
		res.Error = err.Error()
		return res
	}
	res.Cursor = cursor

	windowStart := s.windowStart(cursor, opts)
	query := map[string]string{
		"updatedAfter": windowStart.UTC().Format(time.RFC3339),
	}
	if len(opts.Statuses) > 0 {
		query["status"] = strings.Join(opts.Statuses, ",")
	}

	pages := s.pager.Pages(ctx, auth, domain.PageRequest{
		Path:     s.ordersPath,
		Query:    query,
		ItemsKey: s.itemsKey,
		MaxPages: opts.MaxPages,
	})

	var maxSeen time.Time
	for page, ok := pages.Next(); ok; page, ok = pages.Next() {
		for _, item := range page.Items {
			rec, err := domain.DecodeOrder(shopID, item)
			if err != nil {
				log.Warn().Err(err).Int("page", page.Index).Msg("Skipping undecodable order item")
				continue
			}
			res.Processed++
			if err := s.orders.UpsertOrder(ctx, rec); err != nil {
				metrics.SyncRuns.WithLabelValues("error").Inc()
				log.Error().Err(err).Str("externalId", rec.ExternalID).Msg("Order upsert failed")
				res.Error = err.Error()
				return res
			}
			res.Upserted++
			metrics.OrdersUpserted.Inc()
			if rec.UpdatedAt.After(maxSeen) {
				maxSeen = rec.UpdatedAt
			}
		}
	}
	if err := pages.Err(); err != nil {
		metrics.SyncRuns.WithLabelValues("page_error").Inc()
		log.Error().Err(err).Msg("Sync aborted mid-pagination, cursor unchanged")
		res.Error = err.Error()
		return res
	}
	res.Truncated = pages.Reason().Truncated()

	// Advance only to an observed updatedAt, never "now". Zero records means
	// the cursor stays where it was.
	if res.Processed > 0 && maxSeen.After(cursor.UpdatedAfter) {
		next := cursor.Advance(maxSeen)
		if err := s.saveCursor(ctx, next); err != nil {
			metrics.SyncRuns.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("Failed to persist sync cursor")
			res.Error = err.Error()
			return res
		}
		res.Cursor = next
	}

	metrics.SyncRuns.WithLabelValues("ok").Inc()
	metrics.SyncDuration.Observe(s.now().Sub(started).Seconds())
	log.Info().
		Int("processed", res.Processed).
		Int("upserted", res.Upserted).
		Time("cursor", res.Cursor.UpdatedAfter).
		Bool("truncated", res.Truncated).
		Str("reason", string(pages.Reason())).
		Msg("Incremental sync completed")
	return res
}

// windowStart computes the query window start: the cursor minus the overlap,
// pulled further back when the caller requests a deeper lookback.
func (s *SyncService) windowStart(cursor domain.SyncCursor, opts SyncOptions) time.Time {
	start := cursor.UpdatedAfter
	if opts.LookbackDays > 0 {
		requested := s.now().Add(-time.Duration(opts.LookbackDays) * 24 * time.Hour)
		if requested.Before(start) {
			start = requested
		}
	}
	return start.Add(-overlapWindow)
}

func (s *SyncService) loadCursor(ctx context.Context, shopID string) (domain.SyncCursor, error) {
	raw, err := s.kv.Get(ctx, cursorKeyPrefix+shopID)
	if err != nil {
		return domain.SyncCursor{}, fmt.Errorf("failed to load cursor: %w", err)
	}
	if raw == nil {
		// First-ever sync: start the window at the lookback baseline, not at
		// epoch zero and not at now.
		return domain.SyncCursor{ShopID: shopID, UpdatedAfter: s.now().Add(-lookbackBaseline)}, nil
	}
	var cursor domain.SyncCursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return domain.SyncCursor{}, fmt.Errorf("corrupt cursor for shop %s: %w", shopID, err)
	}
	return cursor, nil
}

func (s *SyncService) saveCursor(ctx context.Context, cursor domain.SyncCursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return s.kv.Upsert(ctx, cursorKeyPrefix+cursor.ShopID, raw)
}

func errLabel(err error) string {
	if errors.Is(err, domain.ErrCredentialMissing) {
		return "CredentialMissing"
	}
	var mintErr *domain.TokenMintError
	if errors.As(err, &mintErr) {
		return "TokenMintError"
	}
	return err.Error()
}
