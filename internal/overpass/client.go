package overpass

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/landscore/internal/resilience"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// StatusError is returned for a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("overpass: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("overpass: request failed with status %d: %s", e.StatusCode, e.Body)
}

// Querier runs a raw Overpass QL query and returns the response body.
type Querier interface {
	Query(ctx context.Context, query string) ([]byte, error)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Endpoint string
	// Timeout bounds one HTTP round trip. It should exceed the query's
	// server-side timeout.
	Timeout time.Duration
	// RatePerSecond limits outgoing requests, retries included.
	RatePerSecond float64
	Retry         resilience.Policy
	HTTPClient    *http.Client
	UserAgent     string
}

// Client posts queries to an Overpass endpoint.
type Client struct {
	endpoint  string
	http      *http.Client
	limiter   *rate.Limiter
	retry     resilience.Policy
	userAgent string
}

// NewClient returns a client with defaults filled in.
func NewClient(opts ClientOptions) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = (DefaultTimeoutSecs + 30) * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 0.5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "landscore/1.0"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	retry := opts.Retry
	if retry.Service == "" {
		retry.Service = "overpass"
	}
	return &Client{
		endpoint:  opts.Endpoint,
		http:      hc,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		retry:     retry,
		userAgent: opts.UserAgent,
	}
}

// Query posts query as the "data" form field. Rate limiting (429), server
// errors and network failures are retried; any other non-200 status fails
// immediately with a *StatusError.
func (c *Client) Query(ctx context.Context, query string) ([]byte, error) {
	return resilience.Call(ctx, c.retry, "query", func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "overpass: rate limiter wait")
		}
		return c.post(ctx, query)
	})
}

func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: post")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "overpass: read body"), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		serr := &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(serr, resp.StatusCode)
		}
		return nil, serr
	}

	zap.L().Debug("overpass: query complete",
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
