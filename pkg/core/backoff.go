package core

import (
	"time"
)

// Backoff computes the delay before a failed job becomes eligible again.
type Backoff struct {
	// Base is multiplied by Factor^attempts to produce the delay, so the
	// first failure already waits Base·Factor.
	// Default: 5s
	Base time.Duration

	// Factor is the multiplier applied per additional attempt.
	// Default: 2.0
	Factor float64

	// Max caps the computed delay.
	// Default: 5m
	Max time.Duration
}

// DefaultBackoff returns the default backoff policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   5 * time.Second,
		Factor: 2.0,
		Max:    5 * time.Minute,
	}
}

// Delay returns base·factor^attempt capped at Max. It is monotonically
// non-decreasing in the attempt count. Attempts below one are treated as one.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Base)
	for i := 0; i < attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	if d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}
