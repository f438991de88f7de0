package domain

import "encoding/json"

// StopReason records why a page sequence ended. Budget and deadline stops
// leave vendor pages unread, so downstream results derived from them must be
// marked approximate.
type StopReason string

const (
	StopLastPage   StopReason = "last_page"
	StopNoToken    StopReason = "no_token"
	StopPageBudget StopReason = "page_budget"
	StopDeadline   StopReason = "deadline"
	StopError      StopReason = "error"
)

// Truncated reports whether the sequence ended with vendor pages unread.
func (r StopReason) Truncated() bool {
	return r == StopPageBudget || r == StopDeadline
}

// PageRequest describes one paged vendor list call.
type PageRequest struct {
	Path     string
	Query    map[string]string
	ItemsKey string // response key holding the items array, e.g. "orders"
	// TokenParam is the request query parameter carrying the continuation
	// token. Defaults to "token" when empty.
	TokenParam string
	// MaxPages caps the number of pages fetched; 0 means unlimited.
	MaxPages int
}

// Page is one page of a vendor list response.
type Page struct {
	Index int
	Items []json.RawMessage
	// Next is the continuation token for the following page, empty on the
	// final page.
	Next string
	Last bool
}
