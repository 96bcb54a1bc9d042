// Package retry implements the backoff policy wrapped around every full node
// call and every storage round-trip.
package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/longcipher/sui-indexer/pkg/config"
)

// jitterFraction is the maximum relative spread applied to a delay.
const jitterFraction = 0.25

// Policy describes how many times and how far apart an operation is attempted.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// NewPolicy builds a Policy from the retry section of the configuration.
func NewPolicy(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay.Duration,
		MaxDelay:     cfg.MaxDelay.Duration,
		Multiplier:   cfg.BackoffMultiplier,
		Jitter:       !cfg.DisableJitter,
	}
}

// Backoff returns the delay to wait after the given number of failed attempts
// (1 for the first failure): min(MaxDelay, InitialDelay * Multiplier^(failures-1)).
// It does not apply jitter and has no side effects.
func Backoff(failures int, p Policy) time.Duration {
	if failures < 1 {
		return 0
	}

	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(failures-1))

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < 0 || math.IsNaN(delay) {
		return 0
	}

	return time.Duration(delay)
}

// withJitter spreads d uniformly over [0.75d, 1.25d].
func withJitter(d time.Duration) time.Duration {
	spread := float64(d) * jitterFraction
	jittered := float64(d) + (rand.Float64()*2*spread - spread) //nolint:gosec

	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}

// delay returns the wait before the next attempt, jittered if enabled.
func (p Policy) delay(failures int) time.Duration {
	d := Backoff(failures, p)
	if p.Jitter {
		return withJitter(d)
	}
	return d
}
