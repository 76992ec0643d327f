package resilience

import "time"

type Config struct {
	// Retry is a bounded retry with fixed backoff. Run re-execution uses
	// 3 attempts / 30s; outbound HTTP clients use shorter policies.
	RetryMaxAttempts int
	RetryBackoff     time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts: 3,
		RetryBackoff:     2 * time.Second,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// RunRetryConfig governs whole-run re-execution: resubmitting the entire
// pipeline and relying on its idempotency checks to skip finished work.
// The breaker is disabled; a run failure says nothing about a shared
// downstream resource.
func RunRetryConfig(maxAttempts int, backoff time.Duration) Config {
	cfg := Config{
		RetryMaxAttempts: maxAttempts,
		RetryBackoff:     backoff,
		BreakerEnabled:   false,
	}
	return cfg.normalize()
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryBackoff < 0 {
		out.RetryBackoff = def.RetryBackoff
	}
	if out.BreakerEnabled {
		if out.BreakerMinRequests == 0 {
			out.BreakerMinRequests = def.BreakerMinRequests
		}
		if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
			out.BreakerFailureRatio = def.BreakerFailureRatio
		}
		if out.BreakerOpenTimeout <= 0 {
			out.BreakerOpenTimeout = def.BreakerOpenTimeout
		}
		if out.BreakerHalfOpenMaxCalls == 0 {
			out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
		}
	}
	return out
}
