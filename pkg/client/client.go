package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is where a local daemon serves its API.
const DefaultBaseURL = "http://127.0.0.1:3000/api"

// Client provides HTTP client functionality to communicate with the landodeck daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
}

// New creates a new landodeck API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// APIError is a non-200 answer from the daemon.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("API error (%d): %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/operations", nil, nil)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	return true
}

func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var out struct {
		Sites []Site `json:"sites"`
	}
	if err := c.do(ctx, http.MethodGet, "/sites", nil, &out); err != nil {
		return nil, err
	}
	return out.Sites, nil
}

// CreateSite launches site creation and returns the operation id.
func (c *Client) CreateSite(ctx context.Context, req CreateSiteRequest) (string, error) {
	return c.launch(ctx, http.MethodPost, "/sites", req)
}

// Lifecycle launches start, stop, restart or rebuild for site.
func (c *Client) Lifecycle(ctx context.Context, site, action string) (string, error) {
	switch action {
	case "start", "stop", "restart", "rebuild":
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
	return c.launch(ctx, http.MethodPost, "/sites/"+url.PathEscape(site)+"/"+action, nil)
}

func (c *Client) Destroy(ctx context.Context, site string) (string, error) {
	return c.launch(ctx, http.MethodDelete, "/sites/"+url.PathEscape(site), nil)
}

func (c *Client) MigrateDatabase(ctx context.Context, site string, req MigrateRequest) (string, error) {
	return c.launch(ctx, http.MethodPost, "/sites/"+url.PathEscape(site)+"/migrate-database", req)
}

func (c *Client) SiteInfo(ctx context.Context, site string) (SiteInfo, error) {
	var out SiteInfo
	err := c.do(ctx, http.MethodGet, "/sites/"+url.PathEscape(site)+"/info", nil, &out)
	return out, err
}

func (c *Client) Operations(ctx context.Context) ([]OperationSummary, error) {
	var out struct {
		Operations []OperationSummary `json:"operations"`
	}
	if err := c.do(ctx, http.MethodGet, "/operations", nil, &out); err != nil {
		return nil, err
	}
	return out.Operations, nil
}

// Logs returns the lines of operation id after the first since lines.
func (c *Client) Logs(ctx context.Context, id string, since int) (Logs, error) {
	path := "/operations/" + url.PathEscape(id) + "/logs"
	if since > 0 {
		path += "?since=" + strconv.Itoa(since)
	}
	var out Logs
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Follow polls operation id every interval, passing new lines to onLine,
// until it completes or ctx ends. It returns the final poll.
func (c *Client) Follow(ctx context.Context, id string, interval time.Duration, onLine func(string)) (Logs, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	seen := 0
	for {
		l, err := c.Logs(ctx, id, seen)
		if err != nil {
			return Logs{}, err
		}
		for _, line := range l.Logs {
			if onLine != nil {
				onLine(line)
			}
		}
		seen += len(l.Logs)
		if l.Completed {
			return l, nil
		}
		select {
		case <-ctx.Done():
			return l, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/operations/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// Config returns the daemon configuration as a generic document.
func (c *Client) Config(ctx context.Context) (map[string]any, error) {
	var out struct {
		Config map[string]any `json:"config"`
	}
	err := c.do(ctx, http.MethodGet, "/config", nil, &out)
	return out.Config, err
}

func (c *Client) UpdateConfig(ctx context.Context, updates map[string]any) (map[string]any, error) {
	var out struct {
		Config map[string]any `json:"config"`
	}
	err := c.do(ctx, http.MethodPost, "/config", updates, &out)
	return out.Config, err
}

func (c *Client) Detect(ctx context.Context) (Detected, error) {
	var out struct {
		Detected Detected `json:"detected"`
	}
	err := c.do(ctx, http.MethodGet, "/config/detect", nil, &out)
	return out.Detected, err
}

func (c *Client) Verify(ctx context.Context, landoPath, sitesDirectory string) (Verified, error) {
	var out Verified
	body := map[string]string{"landoPath": landoPath, "sitesDirectory": sitesDirectory}
	err := c.do(ctx, http.MethodPost, "/config/verify", body, &out)
	return out, err
}

func (c *Client) launch(ctx context.Context, method, path string, body any) (string, error) {
	var out struct {
		OperationID string `json:"operationId"`
	}
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return "", err
	}
	if out.OperationID == "" {
		return "", errors.New("daemon returned no operation id")
	}
	return out.OperationID, nil
}

// do performs HTTP request with common error handling and decodes a 200 body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "path", path)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		c.logger.Debug("Failed to decode error response", "status", resp.StatusCode)
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return &APIError{Status: resp.StatusCode, Message: errorResp.Error, Details: errorResp.Details}
}
