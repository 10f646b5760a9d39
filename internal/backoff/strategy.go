// Package backoff computes retry delays from a zero-based attempt index.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// maxExponent bounds the exponent so float64 growth cannot overflow a Duration.
const maxExponent = 30

// Params holds the inputs shared by every strategy. A non-positive Max
// disables the cap.
type Params struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Strategy maps an attempt number to a delay.
type Strategy interface {
	Delay(attempt int, p Params) time.Duration
}

// Exponential grows the delay as Initial * Multiplier^attempt and adds up to
// Jitter*delay of uniform noise.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, p Params) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxExponent {
		attempt = maxExponent
	}

	raw := float64(p.Initial) * Pow(p.Multiplier, attempt)
	delay := time.Duration(math.MaxInt64)
	if raw < float64(math.MaxInt64) {
		delay = time.Duration(raw)
	}
	delay = p.clamp(delay)

	if jitter := clampJitter(p.Jitter); jitter > 0 {
		if jittered := delay + time.Duration(float64(delay)*jitter*rand.Float64()); jittered >= delay {
			delay = p.clamp(jittered)
		}
	}
	return delay
}

// Decorrelated draws a delay uniformly from [Initial, min(Max, Initial*3^attempt)].
// Multiplier and Jitter are ignored.
type Decorrelated struct{}

// Delay implements Strategy.
func (Decorrelated) Delay(attempt int, p Params) time.Duration {
	if attempt <= 0 {
		return p.Initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(p.Initial)
	upper := base * Pow(3.0, attempt)
	if p.Max > 0 && upper > float64(p.Max) {
		upper = float64(p.Max)
	}
	if upper < base {
		upper = base
	}

	return p.clamp(time.Duration(base + rand.Float64()*(upper-base)))
}

func (p Params) clamp(d time.Duration) time.Duration {
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow calculates base^exponent with integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
