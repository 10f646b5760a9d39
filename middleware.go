package apiclient

import (
	"net/http"
	"net/http/httputil"

	"github.com/rs/zerolog"
)

// RoundTripper is the transport interface middleware wraps.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware intercepts a single attempt's request.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// chain wraps base with middleware so middleware[0] runs first.
func chain(base RoundTripper, middleware []Middleware) RoundTripper {
	current := base
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		if mw == nil {
			continue
		}
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return mw(r, next)
		})
	}
	return current
}

// DebugMiddleware logs full request and response dumps at debug level.
// Dumps include headers such as Authorization; keep it out of production.
func DebugMiddleware(logger zerolog.Logger) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		if dump, err := httputil.DumpRequestOut(req, true); err == nil {
			logger.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", string(dump)).Msg("HTTP request")
		}

		resp, err := next.RoundTrip(req)
		if err != nil {
			logger.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
			return nil, err
		}

		if dump, err := httputil.DumpResponse(resp, true); err == nil {
			logger.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(dump)).Msg("HTTP response")
		}
		return resp, nil
	}
}
