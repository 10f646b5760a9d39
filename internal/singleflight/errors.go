package singleflight

import (
	"errors"
	"fmt"
)

// ErrPanicked is wrapped into the error every caller receives when the
// shared function panics.
var ErrPanicked = errors.New("singleflight: function panicked")

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPanicked, p.value)
}

func (p *panicError) Unwrap() error {
	return ErrPanicked
}
