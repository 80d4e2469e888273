// Package ghl provides a client for the CRM's REST API: paginated
// opportunity search plus pipeline metadata for stage-name lookup.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/adsync/internal/resilience"
)

// apiVersion is the CRM API version header required on every request.
const apiVersion = "2021-07-28"

// Client defines the CRM operations the sync loop uses.
type Client interface {
	// ListPipelines returns every pipeline for the location, with stages.
	ListPipelines(ctx context.Context) ([]Pipeline, error)
	// SearchOpportunities fetches one page of opportunities. A 429 response
	// sleeps a fixed delay and retries the same page.
	SearchOpportunities(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// Option configures the CRM client.
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

// WithRateLimit sets a per-second request rate limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the fixed-delay retry policy for 429 responses.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a CRM client for the given private integration token.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://services.leadconnectorhq.com",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.FixedDelay(5, 10*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do issues one request with the retry policy applied. Only rate-limit
// responses are retried; everything else surfaces immediately so the run
// driver can record the failure and move on.
func (c *httpClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return eris.Wrap(err, "ghl: marshal request")
		}
	}

	cfg := c.retry
	cfg.ShouldRetry = resilience.IsRateLimit
	cfg.OnRetry = resilience.RetryLogger("ghl", method+" "+path)

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return eris.Wrap(err, "ghl: rate limit")
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return eris.Wrap(err, "ghl: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Version", apiVersion)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "ghl: request failed"), 0)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return eris.Wrap(readErr, "ghl: read response body")
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return resilience.NewTransientError(
				eris.Errorf("ghl: rate limited: %s", string(respBody)),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("ghl: unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, "ghl: unmarshal response")
		}
		return nil
	})
}

func (c *httpClient) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	var result struct {
		Pipelines []Pipeline `json:"pipelines"`
	}
	if err := c.do(ctx, http.MethodGet, "/opportunities/pipelines", nil, &result); err != nil {
		return nil, err
	}
	return result.Pipelines, nil
}

func (c *httpClient) SearchOpportunities(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 100
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	var result SearchResponse
	path := fmt.Sprintf("/opportunities/search?location_id=%s&page=%d&limit=%d",
		req.LocationID, req.Page, req.Limit)
	if req.PipelineID != "" {
		path += "&pipeline_id=" + req.PipelineID
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
