// Package hub provides a client for the HuggingFace Hub dataset API.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the HuggingFace Hub API base URL.
	BaseURL = "https://huggingface.co"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit caps requests per second against the Hub API.
	RateLimit = 5.0
)

// Dataset describes a dataset repository on the Hub.
type Dataset struct {
	ID           string    `json:"id"`
	SHA          string    `json:"sha,omitempty"`
	Private      bool      `json:"private,omitempty"`
	Gated        any       `json:"gated,omitempty"`
	Downloads    int       `json:"downloads,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Siblings     []Sibling `json:"siblings,omitempty"`
}

// Sibling is a single file entry in a dataset repository.
type Sibling struct {
	Rfilename string `json:"rfilename"`
}

// Client is a rate-limited HTTP client for the Hub API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the access token for authenticated requests.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// NewClient creates a new Hub API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}

	// Check for an access token in the environment
	if token := os.Getenv("HF_TOKEN"); token != "" {
		c.token = token
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DatasetInfo fetches repository metadata for a dataset on the Hub.
func (c *Client) DatasetInfo(ctx context.Context, repo string) (*Dataset, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/api/datasets/%s", c.baseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, repo); err != nil {
		return nil, err
	}

	var ds Dataset
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return nil, fmt.Errorf("%w: parsing dataset info: %v", ErrInvalidResponse, err)
	}

	return &ds, nil
}

// checkStatus returns an error if the HTTP response indicates a problem.
func checkStatus(resp *http.Response, repo string) error {
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode == 404 {
		return fmt.Errorf("%w: %s", ErrNotFound, repo)
	}
	if resp.StatusCode == 429 {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}
	return nil
}
