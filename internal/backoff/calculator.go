package backoff

import "time"

// Calculator binds a Strategy to fixed Params so callers only supply the attempt.
type Calculator struct {
	strategy Strategy
	params   Params
}

// NewCalculator returns a Calculator for strategy and params. A nil strategy
// falls back to Exponential.
func NewCalculator(strategy Strategy, params Params) *Calculator {
	if strategy == nil {
		strategy = Exponential{}
	}
	return &Calculator{strategy: strategy, params: params}
}

// Delay returns the wait before the retry that follows attempt.
func (c *Calculator) Delay(attempt int) time.Duration {
	return c.strategy.Delay(attempt, c.params)
}

// Params returns the parameters the calculator was built with.
func (c *Calculator) Params() Params {
	return c.params
}
