// Package remote fetches the initial to-do list from an HTTP endpoint.
//
// Transport failures and 5xx responses are retried with exponential backoff.
// Other status codes and malformed payloads fail immediately. A cancelled
// context always surfaces as a cancelled error, never as a transport one.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// DefaultURL serves the sample to-do list.
const DefaultURL = "https://dummyjson.com/todos"

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultMaxTries        = 4
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
	maxBodyBytes           = 8 << 20
)

// Item is one remote to-do entry.
type Item struct {
	Title     string `json:"todo"`
	Completed bool   `json:"completed"`
}

type payload struct {
	Todos []Item `json:"todos"`
}

// Client fetches items from a fixed URL.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger

	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMaxTries sets how many attempts a fetch makes, including the first.
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithRetryBackoff overrides the retry delays.
func WithRetryBackoff(initial, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = initial
		c.maxInterval = maxDelay
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for url. An empty url selects DefaultURL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:             strings.TrimSpace(url),
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
		logger:          slog.Default(),
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	return c
}

// URL returns the endpoint the client fetches.
func (c *Client) URL() string {
	return c.url
}

// Fetch downloads and decodes the item list.
func (c *Client) Fetch(ctx context.Context) ([]Item, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = c.maxInterval

	items, err := backoff.Retry(ctx, func() ([]Item, error) {
		return c.fetchOnce(ctx)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("remote fetch failed, retrying", "url", c.url, "next", next, "error", err)
		}),
	)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return items, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, backoff.Permanent(todoerr.Wrap(todoerr.KindTransport, todoerr.CodeGeneric, "build request", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, todoerr.Wrap(todoerr.KindTransport, todoerr.CodeGeneric, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, todoerr.Wrap(todoerr.KindTransport, todoerr.CodeGeneric, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := todoerr.New(todoerr.KindTransport, resp.StatusCode, "Invalid status code.")
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}
	if len(body) == 0 {
		return nil, backoff.Permanent(todoerr.New(todoerr.KindTransport, resp.StatusCode, "Empty response."))
	}

	items, err := Decode(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return items, nil
}

// Decode parses either {"todos": [...]} or a bare array of items.
func Decode(data []byte) ([]Item, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []Item
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, todoerr.Wrap(todoerr.KindDecode, todoerr.CodeGeneric, "decode items", err)
		}
		return items, nil
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, todoerr.Wrap(todoerr.KindDecode, todoerr.CodeGeneric, "decode items", err)
	}
	if p.Todos == nil {
		return nil, todoerr.New(todoerr.KindDecode, todoerr.CodeGeneric, `payload has no "todos" list`)
	}
	return p.Todos, nil
}

// classify maps the final retry error onto the error taxonomy.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return todoerr.Wrap(todoerr.KindCancelled, todoerr.CodeCancelled, "Request explicitly cancelled.", err)
	}
	var te *todoerr.Error
	if errors.As(err, &te) {
		return te
	}
	return todoerr.Wrap(todoerr.KindTransport, todoerr.CodeGeneric, "fetch items", err)
}
