package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// request is one logical call as seen by the executor.
type request struct {
	method string
	path   string
	opts   requestOptions
	cache  CacheOptions
	id     string
	body   []byte
}

// reissue returns a copy of r carrying the refreshed token and the retry
// marker, so the re-issued call cannot trigger another refresh.
func (r *request) reissue(token string) *request {
	next := *r
	next.opts.headers = r.opts.headers.Clone()
	if next.opts.headers == nil {
		next.opts.headers = make(http.Header, 1)
	}
	next.opts.headers.Set(IsRetryHeader, "true")
	next.opts.refreshedToken = token
	return &next
}

// execute runs the retry loop of one logical call.
func execute[T any](ctx context.Context, c *Client, req *request) Result[T] {
	policy := effectiveRetry(req.opts.retry, c.cfg.DefaultRetry)

	for attempt := 0; attempt <= policy.Count; attempt++ {
		c.logger.Debug().
			Str("request_id", req.id).
			Str("method", req.method).
			Str("path", req.path).
			Int("attempt", attempt).
			Msg("attempt started")

		result, refresh := attemptOnce[T](ctx, c, req)
		if result.OK() {
			return result
		}
		apiErr := result.Err()

		if refresh {
			c.logger.Debug().Str("request_id", req.id).Str("path", req.path).Msg("unauthorized, refreshing token")
			if token := c.refresher.Refresh(ctx); token != "" {
				return execute[T](ctx, c, req.reissue(token))
			}
			c.reportFailure(req, apiErr)
			return result
		}

		c.reportFailure(req, apiErr)
		if attempt == policy.Count || !c.shouldRetry(policy, apiErr) {
			return result
		}

		delay := c.retryDelay(policy, attempt)
		c.metrics.RecordRetry(req.method, req.path, attempt+1)
		c.logger.Debug().
			Str("request_id", req.id).
			Str("method", req.method).
			Str("path", req.path).
			Int("attempt", attempt).
			Int("status_code", apiErr.StatusCode()).
			Dur("backoff", delay).
			Msg("retrying request")

		if err := wait(ctx, delay); err != nil {
			failure := classifyError(ctx, err)
			c.reportFailure(req, failure)
			return Failure[T](failure)
		}
	}

	return Failure[T](newRetryExhaustedError())
}

// attemptOnce performs a single network attempt. refresh is true when the
// attempt ended in a 401 that should trigger a token refresh.
func attemptOnce[T any](ctx context.Context, c *Client, req *request) (result Result[T], refresh bool) {
	attemptCtx, cancel := attemptContext(ctx, c.cfg.DefaultTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result, refresh = Failure[T](classifyPanic(r)), false
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(attemptCtx); err != nil {
			if attemptCtx.Err() != nil {
				return Failure[T](classifyError(attemptCtx, err)), false
			}
			// the limiter refuses waits that would outlive the deadline
			return Failure[T](newTimeoutError(err)), false
		}
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method, c.cfg.BaseURL+req.path, body)
	if err != nil {
		return Failure[T](classifyError(attemptCtx, err)), false
	}
	httpReq.Header = c.buildHeaders(attemptCtx, req)

	resp, err := c.transport.RoundTrip(httpReq)
	if err != nil {
		return Failure[T](classifyError(attemptCtx, err)), false
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure[T](classifyError(attemptCtx, err)), false
	}

	if resp.StatusCode == TokenRefreshTriggerStatus && c.refresher != nil && req.opts.headers.Get(IsRetryHeader) == "" {
		return classifyResponse[T](resp.StatusCode, data), true
	}

	result = classifyResponse[T](resp.StatusCode, data)
	if result.OK() {
		storeCache(c, req, resp.StatusCode, data)
	}
	return result, false
}

// attemptContext derives the context of one attempt. The default timeout
// applies only when the caller set no deadline.
func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, timeout, fmt.Errorf("%w after %s", ErrTimeout, timeout))
}

// buildHeaders merges, later wins: JSON content type, default headers, auth
// header, per-call headers. The request ID is added when absent.
func (c *Client) buildHeaders(ctx context.Context, req *request) http.Header {
	h := make(http.Header, len(c.cfg.DefaultHeaders)+4)
	h.Set("Content-Type", "application/json")
	mergeHeaders(h, c.cfg.DefaultHeaders)

	if tr := c.cfg.TokenRefresh; tr != nil {
		token := req.opts.refreshedToken
		if token == "" {
			var err error
			token, err = tr.GetAccessToken(ctx)
			if err != nil {
				c.logger.Warn().Err(err).Str("request_id", req.id).Msg("failed to read access token, sending request without auth")
				token = ""
			}
		}
		if token != "" {
			mergeHeaders(h, tr.GetAuthorizationHeader(token))
		}
	}

	mergeHeaders(h, req.opts.headers)
	if req.id != "" && h.Get(RequestIDHeader) == "" {
		h.Set(RequestIDHeader, req.id)
	}
	return h
}

func mergeHeaders(dst, src http.Header) {
	for k, vs := range src {
		dst[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
}

// shouldRetry evaluates the policy predicate. A panicking predicate means no
// retry.
func (c *Client) shouldRetry(policy RetryConfig, err *APIError) (retry bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Interface("panic", r).Msg("retry predicate panicked")
			retry = false
		}
	}()
	return policy.ShouldRetry(err)
}

// retryDelay evaluates the policy delay. A panicking delay function means no
// wait.
func (c *Client) retryDelay(policy RetryConfig, attempt int) (d time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Interface("panic", r).Msg("retry delay panicked")
			d = 0
		}
	}()
	return policy.Delay(attempt)
}

// reportFailure fires OnHTTPError and records the failure.
func (c *Client) reportFailure(req *request, err *APIError) {
	if err == nil {
		return
	}
	c.metrics.RecordError(err.Type(), req.method, req.path)
	c.logger.Debug().
		Str("request_id", req.id).
		Str("method", req.method).
		Str("path", req.path).
		Int("status_code", err.StatusCode()).
		Str("error_type", err.Type()).
		Msg(err.Message())
	c.hook("OnHTTPError", req.path, func() { c.cfg.OnHTTPError(err) })
}

// lookupCache serves a fresh cached response when the call's directives
// allow it.
func lookupCache[T any](c *Client, req *request) (Result[T], bool) {
	if c.cache == nil || !req.cache.cacheable(req.method) {
		return Result[T]{}, false
	}

	entry, ok := c.cache.Get(cacheKey(req.method, c.cfg.BaseURL+req.path))
	if !ok {
		c.metrics.RecordCacheMiss(req.path)
		return Result[T]{}, false
	}

	result := classifyResponse[T](entry.StatusCode, entry.Body)
	if !result.OK() {
		c.metrics.RecordCacheMiss(req.path)
		return Result[T]{}, false
	}

	c.metrics.RecordCacheHit(req.path)
	c.logger.Debug().Str("request_id", req.id).Str("path", req.path).Msg("served from cache")
	return result, true
}

func storeCache(c *Client, req *request, statusCode int, body []byte) {
	if c.cache == nil || !req.cache.cacheable(req.method) {
		return
	}
	c.cache.Set(cacheKey(req.method, c.cfg.BaseURL+req.path), &CacheEntry{
		StatusCode: statusCode,
		Body:       append([]byte(nil), body...),
		Tags:       append([]string(nil), req.cache.Tags...),
	}, req.cache.Revalidate)
}
