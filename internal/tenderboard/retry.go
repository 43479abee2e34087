package tenderboard

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"sjsage522/tenderscraper/logger"
	scrapeerr "sjsage522/tenderscraper/pkg/errors"
)

// RetryPolicy bounds how often a failed request is repeated
type RetryPolicy struct {
	// MaxAttempts includes the first request. Zero or less retries forever.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// Jitter is the fraction by which each delay is randomized, e.g. 0.2 for ±20%
	Jitter float64
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    8,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
	}
}

// retryAfterError asks the loop to wait the given delay instead of the
// computed backoff.
type retryAfterError struct {
	err   error
	delay time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

// Do runs fn until it succeeds, returns an error that is not retryable, the
// context is done or the attempts are used up. Exhaustion yields a
// TransientFetchError.
func (p RetryPolicy) Do(ctx context.Context, endpoint string, fn func(attempt int) error) error {
	log := logger.ForPortal()
	backoff := p.InitialBackoff
	var lastErr error

	for attempt := 1; p.MaxAttempts <= 0 || attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Info().Str("endpoint", endpoint).Int("attempt", attempt).Msg("Request succeeded after retry")
			}
			return nil
		}

		if !scrapeerr.IsRetryable(err) {
			return err
		}
		lastErr = err

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(endpoint).Inc()

		delay := p.jittered(backoff)
		var ra *retryAfterError
		if errors.As(err, &ra) && ra.delay > 0 {
			delay = ra.delay
			if p.MaxBackoff > 0 && delay > p.MaxBackoff {
				delay = p.MaxBackoff
			}
		}

		log.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = p.next(backoff)
	}

	retryExhaustedTotal.WithLabelValues(endpoint).Inc()
	log.Warn().Str("endpoint", endpoint).Int("max_attempts", p.MaxAttempts).Msg("Retry attempts exhausted")

	return &scrapeerr.TransientFetchError{Endpoint: endpoint, Attempts: p.MaxAttempts, Err: lastErr}
}

func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	factor := 1 - p.Jitter + rand.Float64()*2*p.Jitter
	return time.Duration(float64(d) * factor)
}

func (p RetryPolicy) next(d time.Duration) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d = time.Duration(float64(d) * mult)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}
