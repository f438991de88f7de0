package vendorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/metrics"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// mintTimeout bounds the token grant call independently of caller deadlines.
// A mint either completes or fails outright; it is never truncated mid-flight.
const mintTimeout = 15 * time.Second

// safetyMargin is subtracted from the vendor's expires_in so a token is
// re-minted before it can expire inside a long page loop.
const safetyMargin = 60 * time.Second

// Rotator persists a rotated refresh token back to the credential store.
type Rotator interface {
	RotateRefreshToken(ctx context.Context, shopID string, newToken string) error
}

// TokenManager mints and caches vendor access tokens, one cache entry per
// credential identity (platform, clientID, apiBase). Concurrent callers for
// the same identity share a single in-flight mint.
type TokenManager struct {
	rotator Rotator
	logger  zerolog.Logger

	mu    sync.RWMutex
	cache map[string]domain.AccessToken
	group singleflight.Group

	now func() time.Time
}

// NewTokenManager creates a token manager. rotator may be nil when rotation
// persistence is handled elsewhere.
func NewTokenManager(rotator Rotator, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		rotator: rotator,
		logger:  logger,
		cache:   make(map[string]domain.AccessToken),
		now:     time.Now,
	}
}

var _ ports.TokenSource = (*TokenManager)(nil)

// AccessToken returns a valid token for the identity, minting one on a cache
// miss or expiry. The returned token is already past its safety-margin check.
func (tm *TokenManager) AccessToken(ctx context.Context, auth domain.ShopAuth) (domain.AccessToken, error) {
	if !auth.Usable() {
		return domain.AccessToken{}, domain.ErrCredentialMissing
	}
	key := auth.IdentityKey()

	tm.mu.RLock()
	tok, ok := tm.cache[key]
	tm.mu.RUnlock()
	if ok && tok.Valid(tm.now()) {
		return tok, nil
	}

	// One mint per identity per expiry cycle; concurrent callers wait on the
	// same flight and receive the same minted token.
	v, err, _ := tm.group.Do(key, func() (interface{}, error) {
		tm.mu.RLock()
		cached, ok := tm.cache[key]
		tm.mu.RUnlock()
		if ok && cached.Valid(tm.now()) {
			return cached, nil
		}
		minted, err := tm.mint(ctx, auth)
		if err != nil {
			return nil, err
		}
		tm.mu.Lock()
		tm.cache[key] = minted
		tm.mu.Unlock()
		return minted, nil
	})
	if err != nil {
		return domain.AccessToken{}, err
	}
	return v.(domain.AccessToken), nil
}

// Invalidate drops the cached token for the identity. Callers use it after a
// 401/invalid-grant so the next call re-mints.
func (tm *TokenManager) Invalidate(auth domain.ShopAuth) {
	tm.mu.Lock()
	delete(tm.cache, auth.IdentityKey())
	tm.mu.Unlock()
}

type mintResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// mint issues a refresh-token grant against the credential's token endpoint.
// The mint runs under its own timeout, detached from the caller's deadline.
func (tm *TokenManager) mint(parent context.Context, auth domain.ShopAuth) (domain.AccessToken, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), mintTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("client_id", auth.ClientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", auth.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		metrics.TokenMints.WithLabelValues("error").Inc()
		return domain.AccessToken{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.TokenMints.WithLabelValues("rejected").Inc()
		tm.logger.Warn().
			Int("status", resp.StatusCode).
			Str("identity", auth.IdentityKey()).
			Msg("Token mint rejected by vendor")
		return domain.AccessToken{}, &domain.TokenMintError{Status: resp.StatusCode, Body: string(body)}
	}

	var mr mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		metrics.TokenMints.WithLabelValues("error").Inc()
		return domain.AccessToken{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if mr.AccessToken == "" {
		metrics.TokenMints.WithLabelValues("error").Inc()
		return domain.AccessToken{}, fmt.Errorf("token response missing access_token")
	}

	tok := domain.AccessToken{
		Value:     mr.AccessToken,
		ExpiresAt: tm.now().Add(time.Duration(mr.ExpiresIn)*time.Second - safetyMargin),
		Source:    auth.Source,
		TokenURL:  auth.TokenURL,
	}
	metrics.TokenMints.WithLabelValues("ok").Inc()
	tm.logger.Debug().
		Str("identity", auth.IdentityKey()).
		Time("expiresAt", tok.ExpiresAt).
		Msg("Minted vendor access token")

	// Persist rotation best-effort: a failed write costs one extra grant on
	// the old refresh token, not the current operation.
	if mr.RefreshToken != "" && mr.RefreshToken != auth.RefreshToken && tm.rotator != nil && auth.Source == domain.AuthSourceShop {
		if err := tm.rotator.RotateRefreshToken(ctx, auth.ShopID, mr.RefreshToken); err != nil {
			tm.logger.Error().Err(err).
				Str("shopId", auth.ShopID).
				Msg("Failed to persist rotated refresh token")
		}
	}

	return tok, nil
}
