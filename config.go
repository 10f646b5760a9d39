package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Config is the static configuration of a Client. Only BaseURL is required;
// New fills every other field with its default.
type Config struct {
	// BaseURL is prefixed verbatim to every request path.
	BaseURL string
	// DefaultHeaders are sent with every request. They override the JSON
	// content type and are overridden by auth and per-call headers.
	DefaultHeaders http.Header
	// DefaultCache holds the cache directives applied when a call sets none.
	DefaultCache CacheOptions
	// DefaultTimeout bounds each attempt when the caller's context has no
	// deadline. Zero disables it.
	DefaultTimeout time.Duration
	// DefaultRetry is the client-wide retry policy; nil means DefaultRetryConfig.
	DefaultRetry *RetryConfig
	// TokenRefresh enables auth header injection and refresh on 401.
	TokenRefresh *TokenRefreshConfig

	// OnRequestStart runs before the first attempt of a call.
	OnRequestStart func(path string)
	// OnRequestEnd runs once per call with the end-to-end duration.
	OnRequestEnd func(path string, duration time.Duration, result Result[any])
	// OnHTTPError runs once per classified failure, retried ones included.
	OnHTTPError func(err *APIError)
}

// withDefaults returns a copy with every optional field populated.
func (c Config) withDefaults() Config {
	headers := make(http.Header, len(c.DefaultHeaders)+1)
	headers.Set("User-Agent", UserAgent())
	for k, vs := range c.DefaultHeaders {
		headers[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	c.DefaultHeaders = headers

	if c.DefaultRetry != nil {
		resolved := c.DefaultRetry.resolve()
		c.DefaultRetry = &resolved
	}
	c.TokenRefresh = c.TokenRefresh.withDefaults()

	if c.OnRequestStart == nil {
		c.OnRequestStart = func(string) {}
	}
	if c.OnRequestEnd == nil {
		c.OnRequestEnd = func(string, time.Duration, Result[any]) {}
	}
	if c.OnHTTPError == nil {
		c.OnHTTPError = func(*APIError) {}
	}
	return c
}

// validate checks the shape of the configuration only.
func (c Config) validate() []string {
	var errors []string

	if c.BaseURL == "" {
		errors = append(errors, "baseURL is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("baseURL is invalid: %v", err))
	} else if u.Scheme == "" || u.Host == "" {
		errors = append(errors, "baseURL must be absolute")
	}

	if c.DefaultTimeout < 0 {
		errors = append(errors, "defaultTimeout must be non-negative")
	}

	return errors
}
