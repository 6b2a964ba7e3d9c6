// Package stockbt is a Go client for the stockbt HTTP API.
package stockbt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockbt/internal/domain"
)

// Re-exported wire types.
type (
	BacktestRequest = domain.BacktestRequest
	BacktestResult  = domain.BacktestResult
	BacktestRun     = domain.BacktestRun
	RuleSpec        = domain.RuleSpec
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Problems   []string // validation problems, for 400 responses
}

func (e *APIError) Error() string {
	if len(e.Problems) > 0 {
		return fmt.Sprintf("stockbt: %d %s: %s", e.StatusCode, e.Message, strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("stockbt: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client provides a Go SDK for interacting with the stockbt-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userID     string
	role       string
}

// Option configures a Client.
type Option func(*Client)

// WithUser sets the identity headers sent with every request.
func WithUser(userID, role string) Option {
	return func(c *Client) {
		c.userID = userID
		c.role = role
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new stockbt API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RunBacktest runs a backtest on the server.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var res BacktestResult
	if err := c.do(ctx, http.MethodPost, "/api/backtest", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Tickers lists the tickers the server can backtest.
func (c *Client) Tickers(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/api/tickers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRuns pages through the caller's saved runs, newest first.
func (c *Client) ListRuns(ctx context.Context, skip, limit int) ([]BacktestRun, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []BacktestRun
	if err := c.do(ctx, http.MethodGet, "/api/backtest-runs?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun retrieves one saved run including its equity curve.
func (c *Client) GetRun(ctx context.Context, id string) (*BacktestRun, error) {
	var run BacktestRun
	if err := c.do(ctx, http.MethodGet, "/api/backtest-runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	if c.role != "" {
		req.Header.Set("X-User-Role", c.role)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error  string   `json:"error"`
			Errors []string `json:"errors"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Problems = e.Errors
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
