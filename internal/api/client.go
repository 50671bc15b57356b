package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// Logger records request outcomes. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Client talks to the grades backend over JSON/HTTP.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	timeout   time.Duration
	logger    Logger
	requestID func() string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero (the default) leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestIDs allows tests to control request ids.
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.requestID = gen
		}
	}
}

// New prepares a client for the backend at baseURL (scheme://host[:port][/prefix]).
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:   parsed,
		http:      &http.Client{},
		logger:    nopLogger{},
		requestID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// HTTPClient exposes the underlying transport so the live channel can share it.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Endpoint resolves an API path against the base URL.
func (c *Client) Endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// StreamURL is the per-student live-update endpoint.
func (c *Client) StreamURL(studentID int64) string {
	return c.Endpoint(fmt.Sprintf("/api/grades/stream/average/%d", studentID))
}

// errorPayload is the backend's error body. Spring-style payloads carry
// `message`; `code` is honoured when a backend supplies one.
type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	reqID := c.requestID()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("api: %s %s [%s] transport error: %v", method, path, reqID, err)
		return &Error{Kind: KindTransport, Method: method, Path: path, RequestID: reqID, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()
	c.logger.Printf("api: %s %s [%s] -> %d (%s)", method, path, reqID, resp.StatusCode, time.Since(started).Round(time.Millisecond))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, Path: path, Status: resp.StatusCode, RequestID: reqID, Message: transportMessage(err), Err: err}
	}
	if resp.StatusCode >= 400 {
		return newStatusError(method, path, reqID, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func newStatusError(method, path, reqID string, status int, body []byte) *Error {
	apiErr := &Error{Method: method, Path: path, Status: status, RequestID: reqID}
	if status >= 500 {
		apiErr.Kind = KindServer
	} else {
		apiErr.Kind = KindValidation
	}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Message)
		apiErr.Code = strings.TrimSpace(payload.Code)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(payload.Error)
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 && !strings.HasPrefix(text, "<") {
		apiErr.Message = text
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
