// Package apiclient provides a JSON API client that never returns a Go error
// from a call. Every call yields a Result holding either a decoded value or an
// *APIError, and the client layers these onto net/http:
//
//   - Authorization header injection with a single shared token refresh on 401
//   - Retries with configurable predicate and exponential backoff
//   - Per-attempt timeouts that yield to a caller-supplied deadline
//   - Response caching for GET calls with revalidate and tag directives
//   - Lifecycle hooks (request start, request end, HTTP error)
//   - Middleware, rate limiting, Prometheus metrics and zerolog logging
//
// Typical usage:
//
//	client := apiclient.New(apiclient.Config{
//	    BaseURL:        "https://api.example.com",
//	    DefaultTimeout: 10 * time.Second,
//	    DefaultRetry:   &apiclient.RetryConfig{Count: 3},
//	})
//	res := apiclient.Get[[]Product](ctx, client, "/products")
//	if !res.OK() {
//	    log.Printf("status %d: %s", res.Err().StatusCode(), res.Err().Message())
//	}
//
// Failures with status 500 or above are retried by default; pass a
// ShouldRetry predicate to change that. Calls without a caller deadline are
// bounded per attempt by Config.DefaultTimeout.
package apiclient
