// Package hubspot provides a client for the HubSpot CRM v3/v4 REST API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/dealdesk/crm-report-cli/internal/resilience"
)

// Client defines the CRM operations used by the report pipelines.
type Client interface {
	// ListOwners fetches all deal owners, following pagination. Falls back
	// to the legacy v2 endpoint when the v3 endpoint is unavailable.
	ListOwners(ctx context.Context) ([]Owner, error)
	// ListPipelines fetches all deal pipelines with their stages.
	ListPipelines(ctx context.Context) ([]Pipeline, error)
	// ListDealProperties fetches the deal property definitions.
	ListDealProperties(ctx context.Context) ([]Property, error)
	// GetDealProperty fetches a single deal property including its options.
	GetDealProperty(ctx context.Context, name string) (*Property, error)
	// SearchDeals runs a filtered deal search, following pagination.
	SearchDeals(ctx context.Context, req SearchRequest) ([]Deal, error)
	// ListDeals fetches all non-archived deals with the given properties,
	// following pagination.
	ListDeals(ctx context.Context, properties []string) ([]Deal, error)
	// BatchDealCompanies resolves each deal to its primary associated
	// company id (first associated id when no primary label exists).
	BatchDealCompanies(ctx context.Context, dealIDs []string) (map[string]string, error)
	// BatchCompanyNames resolves company ids to company names.
	BatchCompanyNames(ctx context.Context, companyIDs []string) (map[string]string, error)
}

// Option configures the HubSpot client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithMaxPages caps the number of pages fetched per paginated call.
// Zero means no cap.
func WithMaxPages(n int) Option {
	return func(c *httpClient) {
		c.maxPages = n
	}
}

// WithRetry overrides the retry configuration for page requests.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	token    string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	maxPages int
}

// NewClient creates a HubSpot client authenticated with a private-app token.
// By default throttled and server-failed requests are retried indefinitely
// with capped exponential backoff; the retry never advances pagination.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.hubapi.com",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.RetryConfig{
			MaxAttempts:    resilience.UnlimitedAttempts,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     32 * time.Second,
			Multiplier:     2.0,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// doJSON performs a single API request with retry on transient failures.
// Throttling (429), server errors (5xx), and transport errors are retried
// with exponential backoff; any other non-2xx status fails immediately with
// the response body in the error. Empty response bodies decode to nothing.
func (c *httpClient) doJSON(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return eris.Wrapf(err, "hubspot: marshal %s %s request", method, path)
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("hubspot", method+" "+path)
	}

	respBody, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "hubspot: rate limit")
		}

		var reqBody io.Reader
		if len(body) > 0 {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, eris.Wrapf(err, "hubspot: create %s %s request", method, path)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err)
		}
		b, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resilience.NewTransientError(readErr)
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("hubspot: %s %s: status %d: %s", method, path, resp.StatusCode, string(b)))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, eris.Errorf("hubspot: %s %s: status %d: %s", method, path, resp.StatusCode, string(b))
		}
		return b, nil
	})
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "hubspot: unmarshal %s %s response", method, path)
	}
	return nil
}

// tryPaths invokes fn for each candidate path in order and returns the first
// success. When every candidate fails, the error from the final candidate is
// surfaced.
func tryPaths[T any](ctx context.Context, paths []string, fn func(ctx context.Context, path string) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for _, path := range paths {
		out, err := fn(ctx, path)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return zero, lastErr
}

// chunk splits items into batches of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	var batches [][]T
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		batches = append(batches, items[i:end])
	}
	return batches
}
