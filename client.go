package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-call request ID.
const RequestIDHeader = "X-Request-ID"

// Client is a JSON API client that layers auth-token injection and refresh,
// retries with backoff, per-attempt timeouts, response caching and lifecycle
// hooks onto net/http. A Client never returns a Go error from a call: every
// outcome is a Result. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	middleware []Middleware
	transport  RoundTripper
	logger     zerolog.Logger
	metrics    *MetricsCollector
	limiter    *rate.Limiter
	cache      Cache
	requestID  func() string
	refresher  *refreshCoordinator

	validationError error
}

// New builds a Client from cfg. No network activity happens here. Validation
// is best effort; check IsValid / ValidationError.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
		requestID:  defaultRequestID,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.transport = chain(RoundTripperFunc(c.httpClient.Do), c.middleware)
	if c.cfg.TokenRefresh != nil {
		c.refresher = newRefreshCoordinator(c.cfg.TokenRefresh.RefreshToken, c.metrics, c.logger)
	}

	if problems := cfg.validate(); len(problems) > 0 {
		c.validationError = &APIError{
			errType:    ErrorTypeValidation,
			statusCode: 0,
			message:    "configuration validation failed",
			details:    problems,
			cause:      fmt.Errorf("validation errors: %s", strings.Join(problems, "; ")),
		}
	}

	return c
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	if c.validationError == nil {
		return nil
	}
	return c.validationError
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Refreshing reports whether a token refresh is currently in flight.
func (c *Client) Refreshing() bool {
	return c.refresher != nil && c.refresher.Refreshing()
}

// InvalidateTags drops cached responses carrying any of tags and returns how
// many were removed.
func (c *Client) InvalidateTags(tags ...string) int {
	if c.cache == nil {
		return 0
	}
	return c.cache.DeleteTags(tags...)
}

// Get performs a GET and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) Result[json.RawMessage] {
	return Get[json.RawMessage](ctx, c, path, opts...)
}

// Post JSON-encodes body, performs a POST and returns the raw JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) Result[json.RawMessage] {
	return Post[json.RawMessage](ctx, c, path, body, opts...)
}

// Put JSON-encodes body, performs a PUT and returns the raw JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) Result[json.RawMessage] {
	return Put[json.RawMessage](ctx, c, path, body, opts...)
}

// Delete performs a DELETE and returns the raw JSON body.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) Result[json.RawMessage] {
	return Delete[json.RawMessage](ctx, c, path, opts...)
}

// Get performs a GET through c and decodes the JSON body into T.
func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) Result[T] {
	return call[T](ctx, c, http.MethodGet, path, nil, false, opts)
}

// Post JSON-encodes body, performs a POST through c and decodes into T.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) Result[T] {
	return call[T](ctx, c, http.MethodPost, path, body, true, opts)
}

// Put JSON-encodes body, performs a PUT through c and decodes into T.
func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) Result[T] {
	return call[T](ctx, c, http.MethodPut, path, body, true, opts)
}

// Delete performs a DELETE through c and decodes into T.
func Delete[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) Result[T] {
	return call[T](ctx, c, http.MethodDelete, path, nil, false, opts)
}

// call wraps one logical request with the lifecycle hooks and metrics.
func call[T any](ctx context.Context, c *Client, method, path string, body any, hasBody bool, opts []RequestOption) Result[T] {
	req := &request{
		method: method,
		path:   path,
		opts:   buildRequestOptions(opts),
	}
	req.cache = c.cfg.DefaultCache.merge(req.opts.cache)
	if c.requestID != nil {
		req.id = c.requestID()
	}

	start := time.Now()
	c.hook("OnRequestStart", path, func() { c.cfg.OnRequestStart(path) })
	c.metrics.RecordRequestStart(method, path)

	var (
		result Result[T]
		done   bool
	)
	if hasBody {
		data, err := json.Marshal(body)
		if err != nil {
			result, done = Failure[T](newTransportError(err.Error(), describeError(err), err)), true
			c.reportFailure(req, result.Err())
		}
		req.body = data
	}
	if !done {
		result, done = lookupCache[T](c, req)
	}
	if !done {
		result = execute[T](ctx, c, req)
	}

	duration := time.Since(start)
	statusCode := http.StatusOK
	if !result.OK() {
		statusCode = result.Err().StatusCode()
	}
	c.metrics.RecordRequestEnd(method, path)
	c.metrics.RecordRequest(method, path, statusCode, duration)

	c.logger.Debug().
		Str("request_id", req.id).
		Str("method", method).
		Str("path", path).
		Bool("ok", result.OK()).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("request finished")

	c.hook("OnRequestEnd", path, func() { c.cfg.OnRequestEnd(path, duration, result.Any()) })
	return result
}

// hook runs a lifecycle callback, containing any panic it raises.
func (c *Client) hook(name, path string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Str("hook", name).Str("path", path).Interface("panic", r).Msg("lifecycle hook panicked")
		}
	}()
	fn()
}
