package apiclient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Option configures the Go-side collaborators of a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for the network calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger for debug and warning events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithMiddleware appends middleware around the network call. The first
// middleware given is the outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRateLimit makes every attempt wait for a token from a limiter with the
// given rate and burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithRequestIDGenerator sets the generator for the X-Request-ID header.
// Passing nil disables the header.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestID = gen
	}
}

// WithResponseCache installs a response cache for GET calls whose cache
// directives allow it.
func WithResponseCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

func defaultRequestID() string {
	return uuid.NewString()
}

// RequestOption adjusts a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers http.Header
	cache   CacheOptions
	retry   *RetryConfig

	// refreshedToken is set on the re-issue that follows a successful refresh.
	refreshedToken string
}

// WithHeader sets one header on the call, overriding defaults and auth.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Set(key, value)
	}
}

// WithHeaders sets headers on the call, overriding defaults and auth.
func WithHeaders(headers http.Header) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(http.Header, len(headers))
		}
		for k, vs := range headers {
			o.headers[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}
	}
}

// WithCache overrides the client's cache directives field by field.
func WithCache(cache CacheOptions) RequestOption {
	return func(o *requestOptions) {
		o.cache = cache
	}
}

// WithRetry replaces the client's retry policy for this call.
func WithRetry(retry RetryConfig) RequestOption {
	return func(o *requestOptions) {
		o.retry = &retry
	}
}

// WithoutRetry disables retries for this call.
func WithoutRetry() RequestOption {
	return WithRetry(RetryConfig{Count: 0})
}

func buildRequestOptions(opts []RequestOption) requestOptions {
	var ro requestOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&ro)
		}
	}
	return ro
}
