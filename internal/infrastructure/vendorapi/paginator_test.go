package vendorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	mu          sync.Mutex
	invalidated int
}

func (s *staticTokens) AccessToken(ctx context.Context, auth domain.ShopAuth) (domain.AccessToken, error) {
	return domain.AccessToken{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *staticTokens) Invalidate(auth domain.ShopAuth) {
	s.mu.Lock()
	s.invalidated++
	s.mu.Unlock()
}

var _ ports.TokenSource = (*staticTokens)(nil)

// pagedServer serves /orders as a token-chained list of fixed-size pages.
type pagedServer struct {
	*httptest.Server
	pages    []string
	lastFlag bool
	failAt   int
}

func newPagedServer(t *testing.T, pages []string, lastFlag bool) *pagedServer {
	t.Helper()
	ps := &pagedServer{pages: pages, lastFlag: lastFlag, failAt: -1}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		idx := 0
		if tok := r.URL.Query().Get("token"); tok != "" {
			_, err := fmt.Sscanf(tok, "page-%d", &idx)
			require.NoError(t, err)
		}
		if idx == ps.failAt {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"upstream"}`)
			return
		}
		require.Less(t, idx, len(ps.pages))

		resp := map[string]any{"orders": json.RawMessage(ps.pages[idx])}
		if idx < len(ps.pages)-1 {
			resp["nextToken"] = fmt.Sprintf("page-%d", idx+1)
		} else if ps.lastFlag {
			resp["isLastPage"] = true
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func newTestPaginator() (*Paginator, *staticTokens) {
	tokens := &staticTokens{}
	client := NewClient(0, 0, 5*time.Second, zerolog.Nop())
	return NewPaginator(client, tokens, zerolog.Nop()), tokens
}

func pageAuth(apiBase string) domain.ShopAuth {
	return domain.ShopAuth{
		ShopID:       "shop-a",
		Platform:     "acme",
		ClientID:     "client-1",
		RefreshToken: "refresh-1",
		APIBase:      apiBase,
		TokenURL:     apiBase + "/oauth/token",
	}
}

func drain(it ports.PageIterator) []domain.Page {
	var pages []domain.Page
	for page, ok := it.Next(); ok; page, ok = it.Next() {
		pages = append(pages, page)
	}
	return pages
}

func TestPagesWalksUntilLastPageFlag(t *testing.T) {
	srv := newPagedServer(t, []string{
		`[{"id":"o1"},{"id":"o2"}]`,
		`[{"id":"o3"}]`,
	}, true)
	p, _ := newTestPaginator()

	it := p.Pages(context.Background(), pageAuth(srv.URL), domain.PageRequest{Path: "/orders", ItemsKey: "orders"})
	pages := drain(it)

	require.NoError(t, it.Err())
	assert.Equal(t, domain.StopLastPage, it.Reason())
	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].Index)
	assert.Len(t, pages[0].Items, 2)
	assert.Equal(t, 1, pages[1].Index)
	assert.Len(t, pages[1].Items, 1)
	assert.False(t, it.Reason().Truncated())
}

func TestPagesStopsWhenContinuationTokenMissing(t *testing.T) {
	srv := newPagedServer(t, []string{`[{"id":"o1"}]`}, false)
	p, _ := newTestPaginator()

	it := p.Pages(context.Background(), pageAuth(srv.URL), domain.PageRequest{Path: "/orders", ItemsKey: "orders"})
	pages := drain(it)

	require.NoError(t, it.Err())
	assert.Equal(t, domain.StopNoToken, it.Reason())
	assert.Len(t, pages, 1)
	assert.False(t, it.Reason().Truncated())
}

func TestPagesHonorsPageBudget(t *testing.T) {
	srv := newPagedServer(t, []string{
		`[{"id":"o1"}]`, `[{"id":"o2"}]`, `[{"id":"o3"}]`, `[{"id":"o4"}]`,
	}, true)
	p, _ := newTestPaginator()

	it := p.Pages(context.Background(), pageAuth(srv.URL), domain.PageRequest{
		Path: "/orders", ItemsKey: "orders", MaxPages: 2,
	})
	pages := drain(it)

	require.NoError(t, it.Err())
	assert.Equal(t, domain.StopPageBudget, it.Reason())
	assert.Len(t, pages, 2)
	assert.True(t, it.Reason().Truncated())
}

func TestPagesStopsOnExpiredDeadline(t *testing.T) {
	srv := newPagedServer(t, []string{`[{"id":"o1"}]`, `[{"id":"o2"}]`}, true)
	p, _ := newTestPaginator()

	ctx, cancel := context.WithCancel(context.Background())
	it := p.Pages(ctx, pageAuth(srv.URL), domain.PageRequest{Path: "/orders", ItemsKey: "orders"})

	page, ok := it.Next()
	require.True(t, ok)
	assert.Len(t, page.Items, 1)

	cancel()
	_, ok = it.Next()
	assert.False(t, ok)
	require.NoError(t, it.Err())
	assert.Equal(t, domain.StopDeadline, it.Reason())
	assert.True(t, it.Reason().Truncated())
}

func TestPagesReportsMidSequenceFetchError(t *testing.T) {
	srv := newPagedServer(t, []string{`[{"id":"o1"}]`, `[{"id":"o2"}]`}, true)
	srv.failAt = 1
	p, _ := newTestPaginator()

	it := p.Pages(context.Background(), pageAuth(srv.URL), domain.PageRequest{Path: "/orders", ItemsKey: "orders"})
	pages := drain(it)

	assert.Len(t, pages, 1)
	assert.Equal(t, domain.StopError, it.Reason())
	var fetchErr *domain.PageFetchError
	require.ErrorAs(t, it.Err(), &fetchErr)
	assert.Equal(t, 1, fetchErr.Page)
}

func TestUnauthorizedResponseInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	p, tokens := newTestPaginator()

	it := p.Pages(context.Background(), pageAuth(srv.URL), domain.PageRequest{Path: "/orders", ItemsKey: "orders"})
	_, ok := it.Next()

	assert.False(t, ok)
	assert.Error(t, it.Err())
	tokens.mu.Lock()
	defer tokens.mu.Unlock()
	assert.Equal(t, 1, tokens.invalidated)
}

func TestMissingItemsKeyYieldsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"isLastPage":true}`)
	}))
	t.Cleanup(srv.Close)
	p, _ := newTestPaginator()

	it := p.Pages(context.Background(), pageAuth(srv.URL), domain.PageRequest{Path: "/orders", ItemsKey: "orders"})
	pages := drain(it)

	require.NoError(t, it.Err())
	require.Len(t, pages, 1)
	assert.Empty(t, pages[0].Items)
	assert.Equal(t, domain.StopLastPage, it.Reason())
}

func TestPagesForwardsQueryAndContinuation(t *testing.T) {
	var gotFirst, gotSecond map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("token") == "" {
			gotFirst = q
			fmt.Fprint(w, `{"orders":[{"id":"o1"}],"nextToken":"abc"}`)
			return
		}
		gotSecond = q
		fmt.Fprint(w, `{"orders":[],"isLastPage":true}`)
	}))
	t.Cleanup(srv.Close)
	p, _ := newTestPaginator()

	it := p.Pages(context.Background(), pageAuth(srv.URL), domain.PageRequest{
		Path:     "/orders",
		Query:    map[string]string{"status": "PENDING", "updatedAfter": "2025-11-01T12:00:00Z"},
		ItemsKey: "orders",
	})
	drain(it)

	require.NoError(t, it.Err())
	assert.Equal(t, "PENDING", gotFirst["status"])
	assert.Equal(t, "2025-11-01T12:00:00Z", gotFirst["updatedAfter"])
	assert.Equal(t, "abc", gotSecond["token"])
	assert.Equal(t, "PENDING", gotSecond["status"])
}
