package domain

import (
	"fmt"
	"time"
)

// AuthSource indicates where a shop's vendor credentials came from.
type AuthSource string

const (
	AuthSourceShop    AuthSource = "shop"
	AuthSourceDefault AuthSource = "default"
)

// ShopAuth holds the vendor auth material for one shop.
// The refresh token is mutable (the vendor rotates it) but does not
// change the credential identity.
type ShopAuth struct {
	ShopID       string     `json:"shop_id" bson:"shop_id"`
	Platform     string     `json:"platform" bson:"platform"`
	ClientID     string     `json:"client_id" bson:"client_id"`
	RefreshToken string     `json:"-" bson:"refresh_token"`
	APIBase      string     `json:"api_base" bson:"api_base"`
	TokenURL     string     `json:"token_url" bson:"token_url"`
	Source       AuthSource `json:"source" bson:"source"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updated_at"`
}

// IdentityKey is the caching identity of a credential set. The refresh
// token is deliberately excluded: rotation must not fork cache entries.
func (a ShopAuth) IdentityKey() string {
	return fmt.Sprintf("%s|%s|%s", a.Platform, a.ClientID, a.APIBase)
}

// Usable reports whether the auth material is complete enough to mint a token.
func (a ShopAuth) Usable() bool {
	return a.ClientID != "" && a.RefreshToken != "" && a.TokenURL != "" && a.APIBase != ""
}

// AccessToken is a short-lived vendor access token. It lives only in the
// token manager's cache and must never be serialized into a response or log.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
	Source    AuthSource
	TokenURL  string
}

// Valid reports whether the token can still be used at the given instant.
// The safety margin is applied at mint time, so this is a plain expiry check.
func (t AccessToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// TokenHandle is the opaque view of a cached token exposed to
// request-proxying callers. It carries everything except the value.
type TokenHandle struct {
	Identity  string     `json:"identity"`
	Source    AuthSource `json:"source"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Handle derives the externally safe view of a token.
func (t AccessToken) Handle(identity string) TokenHandle {
	return TokenHandle{Identity: identity, Source: t.Source, ExpiresAt: t.ExpiresAt}
}
