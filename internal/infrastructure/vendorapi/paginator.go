package vendorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/metrics"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Paginator wraps a vendor paged list endpoint as a lazy, budget-bounded
// page sequence. It performs no retries; retry policy belongs to the caller.
type Paginator struct {
	client *Client
	tokens ports.TokenSource
	logger zerolog.Logger
}

// NewPaginator creates a paginator over the rate-limited vendor client.
func NewPaginator(client *Client, tokens ports.TokenSource, logger zerolog.Logger) *Paginator {
	return &Paginator{client: client, tokens: tokens, logger: logger}
}

var _ ports.Paginator = (*Paginator)(nil)

// Pages starts a lazy sequence. The caller's context deadline bounds the
// sequence: it is checked before each fetch, so an in-flight page always
// completes (no torn page).
func (p *Paginator) Pages(ctx context.Context, auth domain.ShopAuth, req domain.PageRequest) ports.PageIterator {
	return &pageSeq{p: p, ctx: ctx, auth: auth, req: req}
}

type pageSeq struct {
	p    *Paginator
	ctx  context.Context
	auth domain.ShopAuth
	req  domain.PageRequest

	index  int
	next   string
	done   bool
	reason domain.StopReason
	err    error
}

func (s *pageSeq) Err() error                { return s.err }
func (s *pageSeq) Reason() domain.StopReason { return s.reason }

// Next fetches and returns the next page. Termination conditions are checked
// before the fetch: previous page was last, no continuation token, page
// budget reached, or deadline passed.
func (s *pageSeq) Next() (domain.Page, bool) {
	if s.done {
		return domain.Page{}, false
	}
	if s.req.MaxPages > 0 && s.index >= s.req.MaxPages {
		return s.stop(domain.StopPageBudget)
	}
	if err := s.ctx.Err(); err != nil {
		return s.stop(domain.StopDeadline)
	}

	page, err := s.p.fetch(s.ctx, s.auth, s.req, s.index, s.next)
	if err != nil {
		s.err = &domain.PageFetchError{Page: s.index, Err: err}
		return s.stop(domain.StopError)
	}

	s.index++
	s.next = page.Next
	if page.Last {
		s.done = true
		s.reason = domain.StopLastPage
	} else if page.Next == "" {
		s.done = true
		s.reason = domain.StopNoToken
	}
	return page, true
}

func (s *pageSeq) stop(reason domain.StopReason) (domain.Page, bool) {
	s.done = true
	s.reason = reason
	return domain.Page{}, false
}

// listEnvelope is the tolerant decode shape of one vendor list response.
// The items live under a vendor-specific key; the continuation token may be
// called nextToken, token, or next.
type listEnvelope struct {
	NextToken  string `json:"nextToken"`
	Token      string `json:"token"`
	Next       string `json:"next"`
	IsLastPage bool   `json:"isLastPage"`
}

func (e listEnvelope) continuation() string {
	if e.NextToken != "" {
		return e.NextToken
	}
	if e.Token != "" {
		return e.Token
	}
	return e.Next
}

func (p *Paginator) fetch(ctx context.Context, auth domain.ShopAuth, req domain.PageRequest, index int, cont string) (domain.Page, error) {
	tok, err := p.tokens.AccessToken(ctx, auth)
	if err != nil {
		return domain.Page{}, err
	}

	q := url.Values{}
	for k, v := range req.Query {
		q.Set(k, v)
	}
	if cont != "" {
		param := req.TokenParam
		if param == "" {
			param = "token"
		}
		q.Set(param, cont)
	}
	u := strings.TrimRight(auth.APIBase, "/") + req.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("failed to create page request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok.Value)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(ctx, auth.IdentityKey(), httpReq)
	if err != nil {
		return domain.Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Stale or revoked token; drop it so the next run re-mints.
		p.tokens.Invalidate(auth)
		return domain.Page{}, fmt.Errorf("vendor rejected token: status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Page{}, fmt.Errorf("vendor returned status %d: %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Page{}, fmt.Errorf("failed to read page body: %w", err)
	}

	var env listEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Page{}, fmt.Errorf("failed to decode page envelope: %w", err)
	}
	items, err := extractItems(raw, req.ItemsKey)
	if err != nil {
		return domain.Page{}, err
	}

	metrics.PagesFetched.WithLabelValues(req.Path).Inc()
	p.logger.Debug().
		Str("path", req.Path).
		Int("page", index).
		Int("items", len(items)).
		Bool("last", env.IsLastPage).
		Msg("Fetched vendor page")

	return domain.Page{
		Index: index,
		Items: items,
		Next:  env.continuation(),
		Last:  env.IsLastPage,
	}, nil
}

func extractItems(raw []byte, itemsKey string) ([]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	arr, ok := fields[itemsKey]
	if !ok {
		// A page with no items array counts as empty, not malformed; some
		// vendors omit the key on the final page.
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(arr, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items under %q: %w", itemsKey, err)
	}
	return items, nil
}
