// Package httpx wraps the plain net/http GET calls every venue's REST
// instrument enumeration makes (SPEC_FULL.md §4.K), adding the
// rate-limit/circuit-breaker/retry-once-on-504 policy spec.md §7 requires
// without introducing a heavier HTTP client dependency - the teacher's own
// FetchTrades in
// sawpanic-cryptorun/src/infrastructure/datafacade/adapters/binance_adapter.go
// layers the identical rate-limiter-then-breaker-then-request sequence
// around a plain net/http call.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sawpanic/marketfeed/internal/breaker"
	"github.com/sawpanic/marketfeed/internal/pair"
	"github.com/sawpanic/marketfeed/internal/ratelimit"
	"github.com/sawpanic/marketfeed/internal/xerrors"
)

// Client performs rate-limited, circuit-broken GET requests against every
// exchange's REST enumeration endpoint, with one breaker per exchange.
type Client struct {
	http     *http.Client
	limiter  *ratelimit.Manager
	breakers map[pair.Exchange]*breaker.Breaker
}

// NewClient builds an httpx.Client sharing limiter across every exchange
// it serves; each exchange gets its own named breaker (see
// internal/breaker.New).
func NewClient(httpClient *http.Client, limiter *ratelimit.Manager) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, limiter: limiter, breakers: make(map[pair.Exchange]*breaker.Breaker)}
}

func (c *Client) breakerFor(ex pair.Exchange) *breaker.Breaker {
	b, ok := c.breakers[ex]
	if !ok {
		b = breaker.New(string(ex) + "-enumerate")
		c.breakers[ex] = b
	}
	return b
}

// Get performs one rate-limited, circuit-broken GET against url on ex's
// behalf, retrying exactly once on a 504 Gateway Timeout (spec.md §7:
// "GatewayTimeout — REST 504, retried once by the enumeration path").
func (c *Client) Get(ctx context.Context, ex pair.Exchange, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, ex); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	b := c.breakerFor(ex)
	body, err := b.Execute(func() (any, error) {
		body, retry, err := c.doOnce(ctx, url)
		if retry {
			body, _, err = c.doOnce(ctx, url)
		}
		return body, err
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) doOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %v", xerrors.ErrConnection, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", xerrors.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout {
		return nil, true, fmt.Errorf("%w: %s", xerrors.ErrGatewayTimeout, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read body: %v", xerrors.ErrConnection, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: http %d: %s", xerrors.ErrConnection, resp.StatusCode, string(body))
	}
	return body, false, nil
}
