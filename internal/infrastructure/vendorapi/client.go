package vendorapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client performs vendor HTTP calls under a per-credential-identity token
// bucket, so one shop's sweep cannot burn another shop's rate limit.
type Client struct {
	http  *http.Client
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	logger zerolog.Logger
}

// NewClient creates a vendor HTTP client. rps and burst apply per credential
// identity; rps <= 0 disables limiting.
func NewClient(rps float64, burst int, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

func (c *Client) limiter(identity string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[identity]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[identity] = l
	}
	return l
}

// Do waits for the identity's rate limiter, then performs the request.
func (c *Client) Do(ctx context.Context, identity string, req *http.Request) (*http.Response, error) {
	if c.rps > 0 {
		if err := c.limiter(identity).Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.http.Do(req.WithContext(ctx))
}
