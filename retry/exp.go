package retry

import (
	"time"
)

// ExpConfig configures exponentially growing delays
type ExpConfig struct {
	Min   time.Duration
	Max   time.Duration
	Scale float64

	// MaxAttempts is the maximum number of attempts taken; 0 = unlimited
	MaxAttempts int

	// Instant skips the initial zero delay, so that even the first attempt
	// waits Min
	Instant bool
}

// Delays implements interface Config
func (ec ExpConfig) Delays() DelayFn {
	b := NewExpBackoff(ec)
	attempts := 0
	return func() (time.Duration, bool) {
		attempts++
		switch {
		case ec.MaxAttempts != 0 && attempts > ec.MaxAttempts:
			return 0, false
		case attempts == 1 && !ec.Instant:
			return 0, true
		default:
			return b.Backoff(), true
		}
	}
}

// Exponential is the state of an exponential backoff
type Exponential struct {
	config  ExpConfig
	current time.Duration
}

// DefaultExpConfig is used for reconnecting to the database and re-applying
// change-feed batches
var DefaultExpConfig = ExpConfig{
	Min:   10 * time.Millisecond,
	Max:   time.Minute,
	Scale: 2.0,
}

// NewExpBackoff creates an Exponential starting at config.Min
func NewExpBackoff(config ExpConfig) *Exponential {
	return &Exponential{
		config:  config,
		current: config.Min,
	}
}

// Backoff returns the next delay and grows the following one
func (b *Exponential) Backoff() time.Duration {
	delay := b.current
	b.current = time.Duration(float64(b.current) * b.config.Scale)
	if b.current > b.config.Max {
		b.current = b.config.Max
	}
	return delay
}

// Reset returns to the initial delay
func (b *Exponential) Reset() {
	b.current = b.config.Min
}
