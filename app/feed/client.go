package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout = 10 * time.Second
	cacheKey       = "feed:all"
)

// ErrUnavailable marks a failed fetch: transport error, non-200 status or an
// undecodable body.
var ErrUnavailable = errors.New("feed unavailable")

// Record is one externally numbered post as served by the feed.
type Record struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Client fetches the external post feed.
type Client struct {
	client  *http.Client
	cache   *cache.Cache
	url     string
	source  string
	headers http.Header
}

type Options struct {
	Timeout time.Duration
	// CacheTTL keeps a successful fetch for this long. Zero disables caching.
	CacheTTL time.Duration
	// HTTPClient overrides the default client; Timeout is ignored then.
	HTTPClient *http.Client
}

// New returns a client for baseURL+path.
func New(baseURL, path string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid feed url %q: unsupported scheme", u.String())
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		client: httpClient,
		url:    u.String(),
		source: u.Host,
		headers: http.Header{
			"Accept":     []string{"application/json"},
			"User-Agent": []string{"postkeeper-sync"},
		},
	}
	if opts.CacheTTL > 0 {
		c.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c, nil
}

// Source names the feed for the import ledger.
func (c *Client) Source() string {
	return c.source
}

// FetchAll returns the full feed in one request.
func (c *Client) FetchAll(ctx context.Context) ([]Record, error) {
	if c.cache != nil {
		if x, found := c.cache.Get(cacheKey); found {
			return cloneRecords(x.([]Record)), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to perform request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrUnavailable, resp.StatusCode)
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, cloneRecords(records), cache.DefaultExpiration)
	}
	return records, nil
}

// Invalidate drops the cached response, if any.
func (c *Client) Invalidate() {
	if c.cache != nil {
		c.cache.Delete(cacheKey)
	}
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	copy(out, in)
	return out
}
