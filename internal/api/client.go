// Package api is a typed client for the expense service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendsight/internal/cache"
	"spendsight/internal/core"
	"spendsight/internal/log"
)

const maxResponseBytes = 10 << 20

// Client talks to the expense service over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *log.Logger
	settings *cache.LRUCache[core.Settings]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPIClient) }
}

// WithSettingsCache caches GET /settings/{role} for ttl. Updates through the
// client invalidate the role's entry.
func WithSettingsCache(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.settings = cache.NewLRUCache[core.Settings](len(core.Roles), ttl)
		}
	}
}

// New creates a client for baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newPooledHTTPClient(timeout),
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentAPIClient),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.baseURL }

// newPooledHTTPClient keeps a small idle pool since every page refresh hits
// the same host several times at once.
func newPooledHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ListExpenses fetches GET /expenses.
func (c *Client) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	var out expensesResponse
	if err := c.getJSON(ctx, "/expenses", &out); err != nil {
		return nil, err
	}
	if out.Expenses == nil {
		out.Expenses = []core.ExpenseRecord{}
	}
	return out.Expenses, nil
}

// ExpenseStats fetches GET /expenses/stats.
func (c *Client) ExpenseStats(ctx context.Context) (ExpenseStats, error) {
	var out ExpenseStats
	err := c.getJSON(ctx, "/expenses/stats", &out)
	return out, err
}

// ExpensesByCategory fetches GET /expenses/by-category.
func (c *Client) ExpensesByCategory(ctx context.Context) (map[string]CategoryBucket, error) {
	var out byCategoryResponse
	if err := c.getJSON(ctx, "/expenses/by-category", &out); err != nil {
		return nil, err
	}
	if out.ByCategory == nil {
		out.ByCategory = map[string]CategoryBucket{}
	}
	return out.ByCategory, nil
}

// ListAnomalies fetches GET /anomalies.
func (c *Client) ListAnomalies(ctx context.Context) ([]core.AnomalyRecord, error) {
	return c.anomalies(ctx, "/anomalies")
}

// RecentAnomalies fetches GET /anomalies/recent?limit=N.
func (c *Client) RecentAnomalies(ctx context.Context, limit int) ([]core.AnomalyRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.anomalies(ctx, "/anomalies/recent?"+q.Encode())
}

func (c *Client) anomalies(ctx context.Context, endpoint string) ([]core.AnomalyRecord, error) {
	var out anomaliesResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	if out.Anomalies == nil {
		out.Anomalies = []core.AnomalyRecord{}
	}
	return out.Anomalies, nil
}

// AnomalyStats fetches GET /anomalies/stats.
func (c *Client) AnomalyStats(ctx context.Context) (AnomalyStats, error) {
	var out AnomalyStats
	err := c.getJSON(ctx, "/anomalies/stats", &out)
	return out, err
}

// ListActivities fetches GET /activity-logs?limit=N, newest first.
func (c *Client) ListActivities(ctx context.Context, limit int) ([]core.ActivityRecord, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out activitiesResponse
	if err := c.getJSON(ctx, "/activity-logs?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out.Activities == nil {
		out.Activities = []core.ActivityRecord{}
	}
	return out.Activities, nil
}

// ActivityStats fetches GET /activity-logs/stats.
func (c *Client) ActivityStats(ctx context.Context) (ActivityStats, error) {
	var out ActivityStats
	if err := c.getJSON(ctx, "/activity-logs/stats", &out); err != nil {
		return ActivityStats{}, err
	}
	if out.ActionCounts == nil {
		out.ActionCounts = map[string]int{}
	}
	return out, nil
}

// GetSettings fetches GET /settings/{role}.
func (c *Client) GetSettings(ctx context.Context, role string) (core.Settings, error) {
	if c.settings != nil {
		if s, ok := c.settings.Get(role); ok {
			return s, nil
		}
	}
	var out settingsResponse
	if err := c.getJSON(ctx, "/settings/"+url.PathEscape(role), &out); err != nil {
		return core.Settings{}, err
	}
	if c.settings != nil {
		c.settings.Set(role, out.Settings)
	}
	return out.Settings, nil
}

// UpdateSettings sends a partial update with PUT /settings/{role}.
func (c *Client) UpdateSettings(ctx context.Context, role string, patch core.SettingsPatch) (core.Settings, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return core.Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	var out settingsResponse
	endpoint := "/settings/" + url.PathEscape(role)
	if err := c.do(ctx, http.MethodPut, endpoint, bytes.NewReader(body), "application/json", &out); err != nil {
		return core.Settings{}, err
	}
	if c.settings != nil {
		c.settings.Delete(role)
	}
	return out.Settings, nil
}

// UploadLogo posts a logo file for role. Relative paths in the response are
// resolved against the base URL.
func (c *Client) UploadLogo(ctx context.Context, role, filename string, r io.Reader) (LogoResult, error) {
	var out LogoResult
	if err := c.upload(ctx, "/settings/"+url.PathEscape(role)+"/upload-logo", filename, r, &out); err != nil {
		return LogoResult{}, err
	}
	if out.LogoPath != "" && !strings.HasPrefix(out.LogoPath, "http") {
		out.LogoPath = c.baseURL + "/" + strings.TrimLeft(out.LogoPath, "/")
	}
	if c.settings != nil {
		c.settings.Delete(role)
	}
	return out, nil
}

// UploadReceipt posts a receipt image to POST /ocr.
func (c *Client) UploadReceipt(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	var out UploadResult
	err := c.upload(ctx, "/ocr", filename, r, &out)
	return out, err
}

func (c *Client) upload(ctx context.Context, endpoint, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, &buf, mw.FormDataContentType(), out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, "", out)
}

// do sends one request and decodes the JSON body into out. Non-2xx statuses
// and success:false envelopes become *Error; everything else that prevents a
// usable answer wraps ErrTransport.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out any) error {
	path := strings.SplitN(endpoint, "?", 2)[0]

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "Expense API request failed",
			log.NewFields().WithEndpoint(path, 0).WithError(err).ToSlice()...)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrTransport, path, err)
	}

	var env envelope
	envErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Endpoint: path, Message: firstNonEmpty(env.Error, env.Message)}
		c.logger.WarnContext(ctx, "Expense API returned an error",
			log.NewFields().WithEndpoint(path, resp.StatusCode).WithError(apiErr).ToSlice()...)
		return apiErr
	}
	if envErr != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, envErr)
	}
	if env.Success != nil && !*env.Success {
		return &Error{Status: resp.StatusCode, Endpoint: path, Message: firstNonEmpty(env.Error, env.Message, "request was not successful")}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
