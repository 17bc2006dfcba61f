// Package client is the HTTP session client the widget uses to talk to the
// ChatBotYard backend.
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
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/chatbotyard/chatbotyard/internal/domain"
)

const (
	// CSRFHeaderName carries the token on every non-GET request.
	CSRFHeaderName = "X-CSRF-Token"

	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 64 << 10
)

// Client calls the backend with cookie credentials. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu        sync.Mutex
	csrfToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. A cookie jar is added to
// the copy if hc has none; hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.http = &copied
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("client: base URL is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.csrfToken
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	var resp csrfResponse
	if err := c.send(ctx, "fetch csrf token", http.MethodGet, "/csrf-token", nil, &resp, ""); err != nil {
		return "", err
	}
	if resp.CSRFToken == "" {
		return "", &domain.ServerError{Op: "fetch csrf token", StatusCode: http.StatusOK, Message: "empty csrf token"}
	}

	c.mu.Lock()
	c.csrfToken = resp.CSRFToken
	c.mu.Unlock()
	return resp.CSRFToken, nil
}

func (c *Client) forgetToken() {
	c.mu.Lock()
	c.csrfToken = ""
	c.mu.Unlock()
}

// do issues one request. Non-GET verbs carry the CSRF token.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var token string
	if method != http.MethodGet {
		var err error
		if token, err = c.token(ctx); err != nil {
			return err
		}
	}
	err := c.send(ctx, op, method, path, body, out, token)

	var serverErr *domain.ServerError
	if errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusForbidden {
		// Token may have been rotated server side; the next call fetches a new one.
		c.forgetToken()
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, body, out any, token string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(CSRFHeaderName, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "path", path, "error", err)
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "op", op, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return &domain.ServerError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
