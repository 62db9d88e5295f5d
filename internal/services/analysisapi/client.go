package analysisapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"interviewscope/internal/services"
)

const (
	defaultUserAgent = "interviewscope/dev"

	uploadPath  = "api/v1/upload"
	statusPath  = "api/v1/status"
	resultsPath = "api/v1/results"
	videosPath  = "api/v1/videos"
	jobsPath    = "api/v1/jobs"
)

// HTTPDoer describes the HTTP client used by the gateway.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a stateless typed wrapper around the analysis backend.
type Client struct {
	base      *url.URL
	http      HTTPDoer
	userAgent string
	timeout   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent = strings.TrimSpace(agent); agent != "" {
			c.userAgent = agent
		}
	}
}

// WithTimeout bounds JSON requests (status, results, job list). Uploads and
// video downloads are bounded by the caller's context only, since their
// duration scales with file size.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient builds a client for the backend at baseURL. A bare host:port is
// treated as http.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: backend base url is required", services.ErrConfiguration)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse backend base url: %w", services.ErrConfiguration, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: backend base url %q has no host", services.ErrConfiguration, baseURL)
	}
	base.RawQuery = ""
	base.Fragment = ""
	base.Path = strings.TrimRight(base.Path, "/")

	client := &Client{
		base:      base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// GetStatus fetches the latest status of a job. Intermediary caching is
// disabled so every poll observes the backend's current state.
func (c *Client) GetStatus(ctx context.Context, id string) (JobStatus, error) {
	endpoint, err := c.jobEndpoint(statusPath, id)
	if err != nil {
		return JobStatus{}, err
	}
	noCache := http.Header{}
	noCache.Set("Cache-Control", "no-cache, no-store")
	noCache.Set("Pragma", "no-cache")

	var status JobStatus
	if err := c.getJSON(ctx, "get status", endpoint, noCache, &status); err != nil {
		return JobStatus{}, err
	}
	if status.ID == "" {
		status.ID = id
	}
	return status, nil
}

// GetResults fetches the results of a completed job. Calling it before the
// job reports COMPLETED yields a BackendError from the server.
func (c *Client) GetResults(ctx context.Context, id string) (Results, error) {
	endpoint, err := c.jobEndpoint(resultsPath, id)
	if err != nil {
		return Results{}, err
	}
	var results Results
	if err := c.getJSON(ctx, "get results", endpoint, nil, &results); err != nil {
		return Results{}, err
	}
	if results.JobID == "" {
		results.JobID = id
	}
	return results, nil
}

// ListJobs returns every job the backend knows about.
func (c *Client) ListJobs(ctx context.Context) ([]JobStatus, error) {
	var jobs []JobStatus
	if err := c.getJSON(ctx, "list jobs", c.base.JoinPath(jobsPath).String(), nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) jobEndpoint(prefix, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", ErrMissingJobID
	}
	return c.base.JoinPath(prefix, id).String(), nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, headers http.Header, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	c.decorate(ctx, req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(op, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) decorate(ctx context.Context, req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}
}
