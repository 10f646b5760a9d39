package apiclient

// Result is the outcome of a call: either a success carrying a value or a
// failure carrying an *APIError, never both. Build one with Success or Failure.
type Result[T any] struct {
	ok    bool
	value T
	err   *APIError
}

// Success wraps value in a successful Result.
func Success[T any](value T) Result[T] {
	return Result[T]{ok: true, value: value}
}

// Failure wraps err in a failed Result. A nil err is replaced by the
// exhausted-retry failure so a failed Result always carries an error.
func Failure[T any](err *APIError) Result[T] {
	if err == nil {
		err = newRetryExhaustedError()
	}
	return Result[T]{err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.ok
}

// Value returns the success value, or the zero value of T on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, or nil on success.
func (r Result[T]) Err() *APIError {
	return r.err
}

// Unwrap converts the Result into Go's (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if !r.ok {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}

// Any returns the Result with its value boxed as any.
func (r Result[T]) Any() Result[any] {
	if !r.ok {
		return Result[any]{err: r.err}
	}
	return Result[any]{ok: true, value: r.value}
}
