package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mercata-core-vendor-layer/internal/application"
	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler exposes the sync and aggregation engine over REST. Per-shop
// failures surface inside the JSON body; only top-level misconfiguration
// becomes an HTTP error.
type Handler struct {
	sync     *application.SyncService
	agg      *application.AggregatorService
	resolver ports.CredentialResolver
	tokens   ports.TokenSource
	logger   zerolog.Logger
}

// NewHandler creates the REST handler.
func NewHandler(
	sync *application.SyncService,
	agg *application.AggregatorService,
	resolver ports.CredentialResolver,
	tokens ports.TokenSource,
	logger zerolog.Logger,
) *Handler {
	return &Handler{sync: sync, agg: agg, resolver: resolver, tokens: tokens, logger: logger}
}

// Register mounts the API routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sync/run", h.handleSyncRun)
		r.Get("/counters/quick", h.handleQuickCounters)
		r.Get("/counters/exact", h.handleExactCounters)
		r.Post("/counters/invalidate", h.handleInvalidate)
		r.Get("/auth/token-handle", h.handleTokenHandle)
	})
}

func (h *Handler) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var shopIDs []string
	if shop := q.Get("shop"); shop != "" {
		shopIDs = strings.Split(shop, ",")
	}

	opts := application.SyncOptions{
		Statuses: []string{domain.OrderStatusPending},
	}
	if v := q.Get("lookback_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "invalid lookback_days")
			return
		}
		opts.LookbackDays = days
	}
	if q.Get("all_statuses") == "true" {
		opts.Statuses = nil
	}

	results, err := h.sync.RunIncrementalSync(ctx, shopIDs, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Sync sweep failed")
		writeError(w, http.StatusInternalServerError, "sync sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shops": results})
}

func (h *Handler) handleQuickCounters(w http.ResponseWriter, r *http.Request) {
	h.handleCounters(w, r, func(ctx context.Context, metric string, scope domain.Scope) (domain.AggregateSnapshot, error) {
		return h.agg.Quick(ctx, metric, scope, r.URL.Query().Get("by_status") == "true")
	})
}

func (h *Handler) handleExactCounters(w http.ResponseWriter, r *http.Request) {
	h.handleCounters(w, r, func(ctx context.Context, metric string, scope domain.Scope) (domain.AggregateSnapshot, error) {
		return h.agg.Exact(ctx, metric, scope)
	})
}

func (h *Handler) handleCounters(
	w http.ResponseWriter,
	r *http.Request,
	compute func(context.Context, string, domain.Scope) (domain.AggregateSnapshot, error),
) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = domain.MetricPendingOrders
	}
	scope := domain.ScopeAll
	if s := r.URL.Query().Get("scope"); s != "" {
		scope = domain.Scope(s)
	}

	snap, err := compute(r.Context(), metric, scope)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialMissing) {
			writeError(w, http.StatusPreconditionFailed, "no vendor credentials configured")
			return
		}
		h.logger.Error().Err(err).Str("metric", metric).Msg("Counter aggregation failed")
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = domain.MetricPendingOrders
	}
	scope := domain.ScopeAll
	if s := r.URL.Query().Get("scope"); s != "" {
		scope = domain.Scope(s)
	}
	h.agg.Invalidate(r.Context(), metric, scope)
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// handleTokenHandle returns the opaque view of a shop's cached token. The
// token value itself is never serialized.
func (h *Handler) handleTokenHandle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID := r.URL.Query().Get("shop")
	if shopID == "" {
		shopID = domain.GetShopIDFromContext(ctx)
	}

	auth, err := h.resolver.Resolve(ctx, shopID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialMissing) {
			writeError(w, http.StatusNotFound, "no vendor credentials for shop")
			return
		}
		writeError(w, http.StatusInternalServerError, "credential resolution failed")
		return
	}

	tok, err := h.tokens.AccessToken(ctx, auth)
	if err != nil {
		var mintErr *domain.TokenMintError
		if errors.As(err, &mintErr) {
			writeError(w, http.StatusBadGateway, "vendor rejected token mint")
			return
		}
		writeError(w, http.StatusInternalServerError, "token mint failed")
		return
	}
	writeJSON(w, http.StatusOK, tok.Handle(auth.IdentityKey()))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
