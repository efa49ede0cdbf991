package link

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides when the monitor re-issues a connect request after
// the link drops.
type RetryPolicy interface {
	// NextDelay returns the wait before the next attempt, or false when the
	// policy has given up.
	NextDelay() (time.Duration, bool)

	// Reset is called once the link has an address again.
	Reset()
}

// Retry policy names accepted in configuration.
const (
	PolicyImmediate = "immediate"
	PolicyBackoff   = "backoff"
)

// ImmediatePolicy retries at once, forever.
type ImmediatePolicy struct{}

// NextDelay always returns a zero delay.
func (ImmediatePolicy) NextDelay() (time.Duration, bool) { return 0, true }

// Reset is a no-op.
func (ImmediatePolicy) Reset() {}

// BackoffConfig controls BackoffPolicy.
type BackoffConfig struct {
	// InitialDelay is the delay before the first retry (default: 1s).
	InitialDelay time.Duration

	// MaxDelay caps each individual delay (default: 60s).
	MaxDelay time.Duration

	// Multiplier scales the delay after each retry (default: 2.0).
	Multiplier float64

	// Jitter is the randomisation factor in [0,1] (default: 0).
	Jitter float64

	// MaxAttempts limits retries between successful address acquisitions.
	// 0 means unlimited.
	MaxAttempts int
}

// BackoffPolicy retries with capped exponential backoff.
type BackoffPolicy struct {
	mu sync.Mutex
	b  backoff.BackOff
}

// NewBackoffPolicy creates a BackoffPolicy from cfg, filling zero values
// with defaults.
func NewBackoffPolicy(cfg BackoffConfig) *BackoffPolicy {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialDelay
	eb.MaxInterval = cfg.MaxDelay
	eb.Multiplier = cfg.Multiplier
	eb.RandomizationFactor = cfg.Jitter
	eb.MaxElapsedTime = 0 // attempts are capped by MaxAttempts instead

	var b backoff.BackOff = eb
	if cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts))
	}
	b.Reset()

	return &BackoffPolicy{b: b}
}

// NextDelay returns the next backoff interval.
func (p *BackoffPolicy) NextDelay() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// Reset restarts the backoff sequence.
func (p *BackoffPolicy) Reset() {
	p.mu.Lock()
	p.b.Reset()
	p.mu.Unlock()
}

// NewRetryPolicy returns the policy named by name. Unknown names fall back
// to ImmediatePolicy.
func NewRetryPolicy(name string, cfg BackoffConfig) RetryPolicy {
	if name == PolicyBackoff {
		return NewBackoffPolicy(cfg)
	}
	return ImmediatePolicy{}
}
