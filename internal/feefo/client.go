package feefo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public review API root.
	DefaultBaseURL = "https://api.feefo.com/api/20"

	defaultTimeout = 60 * time.Second
	rateLimit      = 2 // requests per second
)

// Client is a rate-limited client for the Feefo review API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rateLimiter
	retryBase  time.Duration
	log        *zap.SugaredLogger
}

// rateLimiter implements a simple token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	return &rateLimiter{
		interval: time.Second / time.Duration(requestsPerSecond),
	}
}

func (r *rateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastCall)
	if elapsed < r.interval {
		time.Sleep(r.interval - elapsed)
	}
	r.lastCall = time.Now()
}

// NewClient creates a review API client rooted at baseURL. An empty baseURL
// falls back to the public API.
func NewClient(baseURL string, log *zap.SugaredLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:   newRateLimiter(rateLimit),
		retryBase: time.Second,
		log:       log,
	}
}

// ReviewQuery scopes a reviews fetch.
type ReviewQuery struct {
	MerchantID string
	MaxPages   int    // 0 means all pages
	Since      string // optional start date filter
	Until      string // optional end date filter
}

// FetchReviews fetches review pages for one merchant. Pagination is by page
// number; the total page count is read from the first page's summary metadata
// and capped by MaxPages.
func (c *Client) FetchReviews(ctx context.Context, q ReviewQuery) ([]Review, error) {
	params := url.Values{}
	params.Set("merchant_identifier", q.MerchantID)
	if q.Since != "" {
		params.Set("since", q.Since)
	}
	if q.Until != "" {
		params.Set("until", q.Until)
	}

	var all []Review
	page := 1
	for {
		params.Set("page", strconv.Itoa(page))

		var resp reviewsResponse
		if err := c.get(ctx, "reviews/all", params, &resp); err != nil {
			return nil, fmt.Errorf("fetching reviews page %d: %w", page, err)
		}
		all = append(all, resp.Reviews...)

		// Last page is whichever comes first: the page count the API reports
		// or the caller's cap. An unreported page count means single page.
		last := resp.Summary.Meta.Pages
		if q.MaxPages > 0 && (last == 0 || q.MaxPages < last) {
			last = q.MaxPages
		}
		if page >= last || len(resp.Reviews) == 0 {
			break
		}
		page++
		c.log.Debugw("fetching next reviews page", "page", page, "pages", last)
	}

	return all, nil
}

// FetchProductRatings fetches the catalog rating for each SKU, one call per
// SKU. A periodDays > 0 restricts ratings to the trailing window.
func (c *Client) FetchProductRatings(ctx context.Context, merchantID string, skus []string, periodDays int) ([]ProductRating, error) {
	ratings := make([]ProductRating, 0, len(skus))
	for _, sku := range skus {
		params := url.Values{}
		params.Set("merchant_identifier", merchantID)
		params.Set("product_sku", sku)
		if periodDays > 0 {
			params.Set("since_period", fmt.Sprintf("%ddays", periodDays))
		}

		var resp productRatingsResponse
		if err := c.get(ctx, "products/ratings", params, &resp); err != nil {
			return nil, fmt.Errorf("fetching ratings for sku %s: %w", sku, err)
		}
		ratings = append(ratings, resp.Products...)
	}
	return ratings, nil
}

// get performs one API call with rate limiting and retries.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u, err := url.Parse(fmt.Sprintf("%s/%s", c.baseURL, path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	u.RawQuery = params.Encode()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * c.retryBase
			c.log.Warnw("retrying request", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		c.limiter.Wait()

		lastErr = c.doRequest(ctx, u.String(), out)
		if lastErr == nil {
			return nil
		}

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.log.Warnw("request failed", "attempt", attempt+1, "error", lastErr)
	}

	return fmt.Errorf("all retries failed: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, urlStr string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429)")
	}

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	return nil
}
