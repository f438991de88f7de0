package domain

import (
	"errors"
	"fmt"
)

// ErrCredentialMissing marks a shop with no usable vendor auth. Multi-shop
// operations treat it as a zero contribution plus approx=true, never as a
// reason to abort the whole sweep.
var ErrCredentialMissing = errors.New("no usable vendor credentials")

// TokenMintError is a non-2xx response from the vendor token endpoint.
// It is non-retryable within the current operation; the next scheduled cycle
// retries naturally. The response body is kept for diagnostics, the request
// (which carries the refresh token) is not.
type TokenMintError struct {
	Status int
	Body   string
}

func (e *TokenMintError) Error() string {
	return fmt.Sprintf("token mint rejected: status %d: %s", e.Status, e.Body)
}

// PageFetchError is a network or parse failure on a single page. It aborts
// the current shop's pagination; the caller owns any retry policy.
type PageFetchError struct {
	Page int
	Err  error
}

func (e *PageFetchError) Error() string {
	return fmt.Sprintf("page %d fetch failed: %v", e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }
