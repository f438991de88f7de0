package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Budget bounds one shop's counting pass.
type Budget struct {
	MaxPages int
	Timeout  time.Duration
}

// AggregatorOptions tune the aggregator's budgets and cache TTLs.
type AggregatorOptions struct {
	Quick    Budget
	Exact    Budget
	Fanout   int
	CacheTTL time.Duration
}

// DefaultAggregatorOptions are the production defaults: a small quick budget
// that keeps counters near-real-time under rate limits, and an exact budget
// large enough to walk the vendor's full list.
func DefaultAggregatorOptions() AggregatorOptions {
	return AggregatorOptions{
		Quick:    Budget{MaxPages: 6, Timeout: 12 * time.Second},
		Exact:    Budget{MaxPages: 0, Timeout: 120 * time.Second},
		Fanout:   4,
		CacheTTL: 180 * time.Second,
	}
}

// metricEndpoint maps a metric to the vendor list it is counted from.
type metricEndpoint struct {
	path     string
	itemsKey string
	query    map[string]string
}

// AggregatorService computes cross-shop totals in two modes: quick
// (budget-bounded, possibly approximate) and exact (exhaustive). Results are
// cached through the multi-tier cache to bound vendor call volume.
type AggregatorService struct {
	resolver ports.CredentialResolver
	pager    ports.Paginator
	cache    ports.SnapshotCache
	opts     AggregatorOptions
	logger   zerolog.Logger

	endpoints map[string]metricEndpoint
	now       func() time.Time
}

// NewAggregatorService creates the aggregator over the shared paginator and
// multi-tier cache.
func NewAggregatorService(
	resolver ports.CredentialResolver,
	pager ports.Paginator,
	tiers ports.SnapshotCache,
	opts AggregatorOptions,
	logger zerolog.Logger,
) *AggregatorService {
	return &AggregatorService{
		resolver: resolver,
		pager:    pager,
		cache:    tiers,
		opts:     opts,
		logger:   logger,
		endpoints: map[string]metricEndpoint{
			domain.MetricPendingOrders: {
				path:     "/orders",
				itemsKey: "orders",
				query:    map[string]string{"status": domain.OrderStatusPending},
			},
			domain.MetricCatalogSize: {
				path:     "/products",
				itemsKey: "products",
			},
		},
		now: time.Now,
	}
}

// Quick computes a budget-bounded counter for the scope, serving a cached
// snapshot when one is fresh. Shops whose credentials are missing or whose
// mint fails contribute zero and flip approx=true instead of failing the
// aggregation.
func (s *AggregatorService) Quick(ctx context.Context, metric string, scope domain.Scope, byStatus bool) (domain.AggregateSnapshot, error) {
	return s.aggregate(ctx, metric, scope, byStatus, s.opts.Quick, "quick", false)
}

// QuickFresh is Quick with the cache bypassed, used by the force-recompute
// entry point.
func (s *AggregatorService) QuickFresh(ctx context.Context, metric string, scope domain.Scope, byStatus bool) (domain.AggregateSnapshot, error) {
	return s.aggregate(ctx, metric, scope, byStatus, s.opts.Quick, "quick", true)
}

// Exact computes an exhaustive counter for the scope. For ScopeAll it runs a
// single pass against the default "all shops" vendor view when one is
// configured, falling back to a per-shop sweep otherwise.
func (s *AggregatorService) Exact(ctx context.Context, metric string, scope domain.Scope) (domain.AggregateSnapshot, error) {
	return s.aggregate(ctx, metric, scope, false, s.opts.Exact, "exact", false)
}

// Invalidate drops cached snapshots for both modes of a metric/scope so the
// next read recomputes.
func (s *AggregatorService) Invalidate(ctx context.Context, metric string, scope domain.Scope) {
	for _, mode := range []string{"quick", "exact"} {
		for _, byStatus := range []bool{false, true} {
			s.cache.Invalidate(ctx, snapshotKey(metric, scope, mode, byStatus))
		}
	}
	s.logger.Info().Str("metric", metric).Str("scope", string(scope)).Msg("Aggregate snapshots invalidated")
}

func snapshotKey(metric string, scope domain.Scope, mode string, byStatus bool) string {
	key := fmt.Sprintf("agg:%s:%s:%s", mode, metric, scope)
	if byStatus {
		key += ":by_status"
	}
	return key
}

func (s *AggregatorService) aggregate(
	ctx context.Context,
	metric string,
	scope domain.Scope,
	byStatus bool,
	budget Budget,
	mode string,
	fresh bool,
) (domain.AggregateSnapshot, error) {
	ep, ok := s.endpoints[metric]
	if !ok {
		return domain.AggregateSnapshot{}, fmt.Errorf("unknown metric %q", metric)
	}

	key := snapshotKey(metric, scope, mode, byStatus)
	if !fresh {
		if raw, ok := s.cache.Read(ctx, key, s.opts.CacheTTL); ok {
			var snap domain.AggregateSnapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return snap, nil
			}
			// A corrupt entry falls through to a recompute.
		}
	}

	snap, err := s.compute(ctx, metric, scope, byStatus, budget, mode, ep)
	if err != nil {
		return domain.AggregateSnapshot{}, err
	}

	if raw, err := json.Marshal(snap); err == nil {
		s.cache.Write(ctx, key, raw, s.opts.CacheTTL)
	}
	return snap, nil
}

func (s *AggregatorService) compute(
	ctx context.Context,
	metric string,
	scope domain.Scope,
	byStatus bool,
	budget Budget,
	mode string,
	ep metricEndpoint,
) (domain.AggregateSnapshot, error) {
	snap := domain.AggregateSnapshot{
		Metric:    metric,
		Scope:     scope,
		UpdatedAt: s.now(),
	}
	if byStatus {
		snap.ByStatus = make(map[string]int64)
	}

	if scope != domain.ScopeAll {
		// Single shop: one pass, no fan-out.
		count := s.countShop(ctx, string(scope), ep, budget, byStatus)
		s.fold(&snap, string(scope), count)
		return snap, nil
	}

	if mode == "exact" {
		// Prefer the default credentials' cross-shop vendor view over a
		// per-shop sweep, which would multiply request volume.
		if _, err := s.resolver.Resolve(ctx, ""); err == nil {
			count := s.countShop(ctx, "", ep, budget, byStatus)
			s.fold(&snap, "", count)
			return snap, nil
		}
	}

	shopIDs, err := s.resolver.ListShopIDs(ctx)
	if err != nil {
		return domain.AggregateSnapshot{}, fmt.Errorf("failed to list shops: %w", err)
	}
	if len(shopIDs) == 0 {
		// No shops and no default credentials is a misconfiguration, not an
		// empty result.
		if _, err := s.resolver.Resolve(ctx, ""); err != nil {
			return domain.AggregateSnapshot{}, domain.ErrCredentialMissing
		}
		return snap, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Fanout)
	for _, shopID := range shopIDs {
		shopID := shopID
		g.Go(func() error {
			count := s.countShop(gctx, shopID, ep, budget, byStatus)
			mu.Lock()
			s.fold(&snap, shopID, count)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return snap, nil
}

// shopCount is one shop's contribution to an aggregate.
type shopCount struct {
	total    int64
	byStatus map[string]int64
	approx   bool
	errLabel string
}

func (s *AggregatorService) fold(snap *domain.AggregateSnapshot, shopID string, c shopCount) {
	snap.Total += c.total
	snap.Approx = snap.Approx || c.approx
	for status, n := range c.byStatus {
		if snap.ByStatus == nil {
			snap.ByStatus = make(map[string]int64)
		}
		snap.ByStatus[status] += n
	}
	if c.errLabel != "" && shopID != "" {
		if snap.ShopError == nil {
			snap.ShopError = make(map[string]string)
		}
		snap.ShopError[shopID] = c.errLabel
	}
}

// countShop counts one shop's items within the budget. The count is purely
// read-only: no upserts, no cursor movement.
func (s *AggregatorService) countShop(ctx context.Context, shopID string, ep metricEndpoint, budget Budget, byStatus bool) shopCount {
	auth, err := s.resolver.Resolve(ctx, shopID)
	if err != nil {
		s.logger.Warn().Err(err).Str("shopId", shopID).Msg("Shop excluded from aggregate")
		return shopCount{approx: true, errLabel: errLabel(err)}
	}

	cctx := ctx
	if budget.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, budget.Timeout)
		defer cancel()
	}

	pages := s.pager.Pages(cctx, auth, domain.PageRequest{
		Path:     ep.path,
		Query:    ep.query,
		ItemsKey: ep.itemsKey,
		MaxPages: budget.MaxPages,
	})

	var c shopCount
	if byStatus {
		c.byStatus = make(map[string]int64)
	}
	for page, ok := pages.Next(); ok; page, ok = pages.Next() {
		c.total += int64(len(page.Items))
		if byStatus {
			for _, item := range page.Items {
				var w struct {
					Status string `json:"status"`
				}
				if err := json.Unmarshal(item, &w); err == nil && w.Status != "" {
					c.byStatus[w.Status]++
				}
			}
		}
	}
	if err := pages.Err(); err != nil {
		// A mid-sequence failure keeps the partial count but taints it.
		s.logger.Warn().Err(err).Str("shopId", shopID).Msg("Aggregate count aborted mid-pagination")
		c.approx = true
		c.errLabel = errLabel(err)
		return c
	}
	c.approx = pages.Reason().Truncated()
	return c
}
