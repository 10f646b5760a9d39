package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const unknownNetworkError = "An unknown network error occurred"

// classifyResponse turns a received response into a Result.
func classifyResponse[T any](statusCode int, body []byte) Result[T] {
	if statusCode >= 200 && statusCode < 300 {
		var value T
		if statusCode == http.StatusNoContent {
			return Success(value)
		}
		if err := json.Unmarshal(body, &value); err != nil {
			return Failure[T](newTransportError(err.Error(), describeError(err), err))
		}
		return Success(value)
	}

	return Failure[T](NewAPIError(statusCode, HTTPErrorMessage(statusCode), parseErrorDetails(body)))
}

// classifyError maps an error raised during an attempt. Cancellation and
// timeouts become the synthetic 408; everything else the synthetic 500.
func classifyError(ctx context.Context, err error) *APIError {
	if err == nil {
		return newRetryExhaustedError()
	}

	if ctx != nil && ctx.Err() != nil {
		return newTimeoutError(context.Cause(ctx))
	}
	if isAbort(err) {
		return newTimeoutError(err)
	}
	return newTransportError(err.Error(), describeError(err), err)
}

func isAbort(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyPanic maps a value recovered from a panicking attempt.
func classifyPanic(r any) *APIError {
	if err, ok := r.(error); ok {
		return newTransportError(err.Error(), describeError(err), err)
	}
	return newTransportError(unknownNetworkError, fmt.Sprint(r), nil)
}

// describeError renders the error chain with the concrete type of each link.
func describeError(err error) string {
	var parts []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		parts = append(parts, fmt.Sprintf("%T: %v", e, e))
	}
	return strings.Join(parts, "\n")
}
