package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single HTTP request to the directory API.
const DefaultTimeout = 30 * time.Second

// Client talks to the directory management API. It holds no credential;
// every call takes the bearer token from the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. "https://tenant.example.com/api/v2").
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListUsers returns one page of users. Pages are zero-based.
func (c *Client) ListUsers(ctx context.Context, token string, page, perPage int) ([]Record, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	req, err := c.newRequest(ctx, http.MethodGet, "/users?"+q.Encode(), token, nil)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := c.do(req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteUser removes the user with the given id.
func (c *Client) DeleteUser(ctx context.Context, token, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), token, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// CreateUser creates a user and returns the record the service stored.
func (c *Client) CreateUser(ctx context.Context, token string, user NewUser) (*Record, error) {
	body, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/users", token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var created Record
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rollcall/1.0")
	return req, nil
}

// do executes req and decodes a 2xx body into out when out is non-nil.
// Non-2xx responses become *APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		c.logger.Debug("directory API error",
			"method", req.Method,
			"path", req.URL.Path,
			"status_code", apiErr.StatusCode,
			"error_code", apiErr.ErrorCode,
			"retry_after", apiErr.RetryAfter)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	// The body's statusCode is advisory; the transport status wins.
	apiErr.StatusCode = resp.StatusCode
	apiErr.RetryAfter, apiErr.HasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	return apiErr
}

// parseRetryAfter reads a delay-seconds Retry-After value. ok is false for
// an absent or unreadable header so the caller applies its default; "0"
// is a hint to retry at once.
func parseRetryAfter(v string) (d time.Duration, ok bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
