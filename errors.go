package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error types reported by APIError.Type.
const (
	ErrorTypeHTTP           = "HTTP"
	ErrorTypeTimeout        = "Timeout"
	ErrorTypeTransport      = "Transport"
	ErrorTypeRetryExhausted = "RetryExhausted"
	ErrorTypeValidation     = "Validation"
)

// Synthetic status codes for failures that never produced an HTTP response.
const (
	StatusRequestAborted   = http.StatusRequestTimeout
	StatusTransportFailure = http.StatusInternalServerError
)

// Sentinel errors for errors.Is matching against an *APIError.
var (
	// ErrTimeout matches timeouts and cancellations. It is also the cancel
	// cause of the per-attempt timeout.
	ErrTimeout = errors.New("apiclient: request timed out")

	// ErrTransport matches failures raised while sending or decoding.
	ErrTransport = errors.New("apiclient: transport failure")

	// ErrRetryExhausted matches the fallback failure of a retry loop that
	// ended without a result.
	ErrRetryExhausted = errors.New("apiclient: retry logic failed")

	// ErrUnauthorized matches HTTP 401 failures.
	ErrUnauthorized = errors.New("apiclient: unauthorized")
)

// APIError describes a failed call. It is immutable after construction.
type APIError struct {
	errType    string
	statusCode int
	message    string
	details    any
	cause      error
}

// ErrorDetails is the structured problem payload some backends return on
// non-2xx responses.
type ErrorDetails struct {
	Code        string              `json:"code,omitempty"`
	Message     string              `json:"message,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// NewAPIError builds an HTTP failure with the given status, message and details.
func NewAPIError(statusCode int, message string, details any) *APIError {
	return &APIError{
		errType:    ErrorTypeHTTP,
		statusCode: statusCode,
		message:    message,
		details:    details,
	}
}

func newTimeoutError(reason error) *APIError {
	return &APIError{
		errType:    ErrorTypeTimeout,
		statusCode: StatusRequestAborted,
		message:    reason.Error(),
		details:    "request aborted",
		cause:      reason,
	}
}

func newTransportError(message string, details any, cause error) *APIError {
	return &APIError{
		errType:    ErrorTypeTransport,
		statusCode: StatusTransportFailure,
		message:    message,
		details:    details,
		cause:      cause,
	}
}

func newRetryExhaustedError() *APIError {
	return &APIError{
		errType:    ErrorTypeRetryExhausted,
		statusCode: StatusTransportFailure,
		message:    "Retry logic failed unexpectedly",
		details:    "Max retries reached without success.",
	}
}

// HTTPErrorMessage renders the message used for every non-2xx response.
func HTTPErrorMessage(statusCode int) string {
	return fmt.Sprintf("HTTP error! status: %d", statusCode)
}

// Type returns one of the ErrorType constants.
func (e *APIError) Type() string {
	return e.errType
}

// StatusCode returns the HTTP status, or a synthetic status for failures that
// produced no response.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Message returns the human-readable description.
func (e *APIError) Message() string {
	return e.message
}

// Details returns the diagnostic payload: *ErrorDetails, decoded JSON, raw
// body text, or a description of the underlying error.
func (e *APIError) Details() any {
	return e.details
}

// ProblemDetails returns the structured payload when the server sent one.
func (e *APIError) ProblemDetails() (*ErrorDetails, bool) {
	d, ok := e.details.(*ErrorDetails)
	return d, ok
}

// Error implements error.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %d: %s", e.errType, e.statusCode, e.message)
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches the package sentinels and other *APIError values of the same
// type and status.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrTimeout:
		return e.errType == ErrorTypeTimeout
	case ErrTransport:
		return e.errType == ErrorTypeTransport
	case ErrRetryExhausted:
		return e.errType == ErrorTypeRetryExhausted
	case ErrUnauthorized:
		return e.errType == ErrorTypeHTTP && e.statusCode == http.StatusUnauthorized
	}
	if other, ok := target.(*APIError); ok {
		return e.errType == other.errType && e.statusCode == other.statusCode
	}
	return false
}

// parseErrorDetails decodes a non-2xx body: a problem object becomes
// *ErrorDetails, other JSON is kept as decoded, anything else as raw text.
func parseErrorDetails(body []byte) any {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return decoded
	}
	_, hasCode := obj["code"]
	_, hasMessage := obj["message"]
	_, hasFields := obj["fieldErrors"]
	if !hasCode && !hasMessage && !hasFields {
		return decoded
	}

	var details ErrorDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return decoded
	}
	return &details
}
