// Package fbads provides a client for the advertising provider's Graph-style
// REST API: campaign/ad-set/ad listing with cursor pagination, weekly insight
// reads, and rate-limit budget tracking from the usage response headers.
package fbads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/adsync/internal/resilience"
)

// Client defines the provider operations the ad sync uses. Every call
// returns the usage budget reported on its response so the traversal can
// halt before the account gets throttled.
type Client interface {
	ListCampaigns(ctx context.Context) ([]Campaign, Usage, error)
	ListAdSets(ctx context.Context, campaignID string) ([]AdSet, Usage, error)
	ListAds(ctx context.Context, campaignID string) ([]Ad, Usage, error)
	// WeeklyInsights returns delivery metrics for the ad bucketed into
	// Monday-start weeks over [since, until].
	WeeklyInsights(ctx context.Context, adID string, since, until time.Time) ([]Insight, Usage, error)
}

// Option configures the provider client.
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

// WithRetry overrides the default retry policy for transient responses.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	token     string
	accountID string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
}

// NewClient creates a provider client for the given access token and ad
// account. The account ID is the bare numeric ID; the "act_" prefix is
// applied where the API requires it.
func NewClient(token, accountID string, opts ...Option) Client {
	c := &httpClient{
		token:     token,
		accountID: accountID,
		baseURL:   "https://graph.facebook.com/v19.0",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
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

// usageHeader is the JSON payload of the X-App-Usage and X-Ad-Account-Usage
// headers: three percentages of the respective budget dimension.
type usageHeader struct {
	CallCount    float64 `json:"call_count"`
	TotalTime    float64 `json:"total_time"`
	TotalCPUTime float64 `json:"total_cputime"`
}

// parseUsage distills the usage headers to the single worst percentage.
// Malformed or missing headers contribute nothing rather than failing the
// call; budget tracking degrades, data flow does not.
func parseUsage(h http.Header) Usage {
	var u Usage
	for _, name := range []string{"X-App-Usage", "X-Ad-Account-Usage"} {
		raw := h.Get(name)
		if raw == "" {
			continue
		}
		var parsed usageHeader
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			continue
		}
		for _, pct := range []float64{parsed.CallCount, parsed.TotalTime, parsed.TotalCPUTime} {
			if pct > u.Percent {
				u.Percent = pct
			}
		}
	}
	return u
}

// get issues one GET with retries on transient statuses, returning the body
// and the usage parsed off the final response.
func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, Usage, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("fbads", "get")

	type result struct {
		body  []byte
		usage Usage
	}
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (result, error) {
		if err := c.wait(ctx); err != nil {
			return result{}, eris.Wrap(err, "fbads: rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return result{}, eris.Wrap(err, "fbads: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return result{}, resilience.NewTransientError(eris.Wrap(err, "fbads: request failed"), 0)
		}
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return result{}, eris.Wrap(readErr, "fbads: read response body")
		}

		usage := parseUsage(resp.Header)
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("fbads: unexpected status %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return result{}, resilience.NewTransientError(err, resp.StatusCode)
			}
			return result{}, err
		}
		return result{body: body, usage: usage}, nil
	})
	if err != nil {
		return nil, Usage{}, err
	}
	return res.body, res.usage, nil
}

// listAll walks every page of a cursor-paginated edge. The returned usage is
// the worst seen on any page, so callers judge the budget by the traversal's
// hottest point rather than its last response.
func listAll[T any](ctx context.Context, c *httpClient, path string, params url.Values) ([]T, Usage, error) {
	params.Set("access_token", c.token)
	if params.Get("limit") == "" {
		params.Set("limit", "100")
	}

	var (
		items []T
		usage Usage
		after string
	)
	for {
		if after != "" {
			params.Set("after", after)
		}
		body, pageUsage, err := c.get(ctx, c.baseURL+path+"?"+params.Encode())
		if err != nil {
			return nil, usage, err
		}
		if pageUsage.Percent > usage.Percent {
			usage = pageUsage
		}

		var env listEnvelope[T]
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, usage, eris.Wrapf(err, "fbads: unmarshal %s", path)
		}
		items = append(items, env.Data...)

		if env.Paging.Cursors.After == "" || env.Paging.Next == "" {
			return items, usage, nil
		}
		after = env.Paging.Cursors.After
	}
}

func (c *httpClient) ListCampaigns(ctx context.Context) ([]Campaign, Usage, error) {
	params := url.Values{}
	params.Set("fields", "id,name,status")
	return listAll[Campaign](ctx, c, fmt.Sprintf("/act_%s/campaigns", c.accountID), params)
}

func (c *httpClient) ListAdSets(ctx context.Context, campaignID string) ([]AdSet, Usage, error) {
	params := url.Values{}
	params.Set("fields", "id,name,campaign_id")
	return listAll[AdSet](ctx, c, fmt.Sprintf("/%s/adsets", campaignID), params)
}

func (c *httpClient) ListAds(ctx context.Context, campaignID string) ([]Ad, Usage, error) {
	params := url.Values{}
	params.Set("fields", "id,name,created_time,adset{id,name},campaign{id,name}")
	return listAll[Ad](ctx, c, fmt.Sprintf("/%s/ads", campaignID), params)
}

func (c *httpClient) WeeklyInsights(ctx context.Context, adID string, since, until time.Time) ([]Insight, Usage, error) {
	params := url.Values{}
	params.Set("fields", "spend,impressions,clicks,reach,cpm,cpc,ctr")
	params.Set("time_increment", "7")
	params.Set("time_range", fmt.Sprintf(`{"since":"%s","until":"%s"}`,
		since.Format("2006-01-02"), until.Format("2006-01-02")))
	return listAll[Insight](ctx, c, fmt.Sprintf("/%s/insights", adID), params)
}
