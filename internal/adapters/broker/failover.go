package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/ports"
	"github.com/lmoretti-dev/whitelight/internal/telemetry"
)

const (
	defaultRetryBaseWait = 2 * time.Second
	retryFactor          = 2.0
	defaultRetryCap      = 60 * time.Second
	defaultMaxAttempts   = 5

	// consecutiveErrorsToFailover is the number of back-to-back connectivity
	// errors against the active broker that trips the switch to secondary.
	consecutiveErrorsToFailover = 2
)

// RetryParams carries the retry/backoff knobs out of config.ExecutionConfig
// so a deployment can retune broker resilience without a code change.
type RetryParams struct {
	MaxAttempts int
	BaseWait    time.Duration
	Cap         time.Duration
}

// DefaultRetryParams returns the values config.setDefaults falls back to.
func DefaultRetryParams() RetryParams {
	return RetryParams{MaxAttempts: defaultMaxAttempts, BaseWait: defaultRetryBaseWait, Cap: defaultRetryCap}
}

// FailoverClient wraps a primary and secondary ports.BrokerClient and
// implements ports.BrokerClient itself, transparently retrying each call
// and switching the active leg to secondary once primary has produced
// consecutiveErrorsToFailover connectivity errors in a row. The switch is
// sticky for the remainder of the process: once failed over, subsequent
// calls go straight to secondary.
type FailoverClient struct {
	primary   ports.BrokerClient
	secondary ports.BrokerClient
	alerts    ports.AlertTransport
	retry     RetryParams

	mu              sync.Mutex
	active          ports.BrokerClient
	consecutiveErrs int
	failedOver      bool
}

// NewFailoverClient returns a FailoverClient. secondary and alerts may be
// nil; with no secondary configured, failover is impossible and errors
// simply propagate after exhausting retries against primary.
func NewFailoverClient(primary, secondary ports.BrokerClient, alerts ports.AlertTransport, retry RetryParams) *FailoverClient {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.BaseWait <= 0 {
		retry.BaseWait = defaultRetryBaseWait
	}
	if retry.Cap <= 0 {
		retry.Cap = defaultRetryCap
	}
	return &FailoverClient{
		primary:   primary,
		secondary: secondary,
		alerts:    alerts,
		retry:     retry,
		active:    primary,
	}
}

// GetAccount implements ports.BrokerClient.
func (f *FailoverClient) GetAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	var out domain.AccountSnapshot
	err := f.call(ctx, func(c ports.BrokerClient) error {
		var innerErr error
		out, innerErr = c.GetAccount(ctx)
		return innerErr
	})
	return out, err
}

// SubmitMarketOrder implements ports.BrokerClient.
func (f *FailoverClient) SubmitMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity int64, clientOrderID string) (string, error) {
	var out string
	err := f.call(ctx, func(c ports.BrokerClient) error {
		var innerErr error
		out, innerErr = c.SubmitMarketOrder(ctx, symbol, side, quantity, clientOrderID)
		return innerErr
	})
	return out, err
}

// PollOrder implements ports.BrokerClient.
func (f *FailoverClient) PollOrder(ctx context.Context, orderID string) (domain.Fill, error) {
	var out domain.Fill
	err := f.call(ctx, func(c ports.BrokerClient) error {
		var innerErr error
		out, innerErr = c.PollOrder(ctx, orderID)
		return innerErr
	})
	return out, err
}

// CancelOrder implements ports.BrokerClient.
func (f *FailoverClient) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	var out bool
	err := f.call(ctx, func(c ports.BrokerClient) error {
		var innerErr error
		out, innerErr = c.CancelOrder(ctx, orderID)
		return innerErr
	})
	return out, err
}

// IsMarketOpen implements ports.BrokerClient.
func (f *FailoverClient) IsMarketOpen(ctx context.Context) (bool, error) {
	var out bool
	err := f.call(ctx, func(c ports.BrokerClient) error {
		var innerErr error
		out, innerErr = c.IsMarketOpen(ctx)
		return innerErr
	})
	return out, err
}

// ActiveIsSecondary reports whether the session has already failed over.
func (f *FailoverClient) ActiveIsSecondary() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failedOver
}

// call retries fn against the active leg with exponential backoff, never
// past ctx's deadline, and escalates to secondary once the consecutive
// connectivity-error count for the active leg reaches the trip threshold.
// A non-retryable error (e.g. a rejection) is returned immediately without
// consuming the failover counter.
func (f *FailoverClient) call(ctx context.Context, fn func(ports.BrokerClient) error) error {
	var lastErr error

	for attempt := 0; attempt < f.retry.MaxAttempts; attempt++ {
		client := f.currentActive()

		err := fn(client)
		if err == nil {
			f.resetConsecutiveErrors()
			return nil
		}
		lastErr = err

		if !domain.IsRetryable(err) {
			return err
		}

		f.recordConnectivityError(ctx)

		if attempt == f.retry.MaxAttempts-1 {
			break
		}
		if !f.sleepBackoff(ctx, attempt) {
			return fmt.Errorf("broker call canceled: %w", ctx.Err())
		}
	}

	return fmt.Errorf("exhausted %d attempts: %w", f.retry.MaxAttempts, lastErr)
}

func (f *FailoverClient) currentActive() ports.BrokerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *FailoverClient) resetConsecutiveErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutiveErrs = 0
}

// recordConnectivityError bumps the consecutive-error count for the active
// leg and, once it reaches consecutiveErrorsToFailover, switches to
// secondary (if one is configured and not already active) and raises an
// alert.
func (f *FailoverClient) recordConnectivityError(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.consecutiveErrs++
	if f.consecutiveErrs < consecutiveErrorsToFailover {
		return
	}
	if f.failedOver || f.secondary == nil || f.active == f.secondary {
		return
	}

	f.active = f.secondary
	f.failedOver = true
	f.consecutiveErrs = 0
	telemetry.BrokerFailovers.Inc()

	slog.Warn("broker: failing over to secondary", "consecutive_errors", consecutiveErrorsToFailover)
	if f.alerts != nil {
		_ = f.alerts.Send(ctx, ports.SeverityCritical, "broker failover",
			fmt.Sprintf("primary broker failed %d consecutive connectivity checks, switched to secondary", consecutiveErrorsToFailover))
	}
}

// sleepBackoff waits the attempt-th backoff interval, jittered ±25% and
// then capped, returning false if ctx was canceled first.
func (f *FailoverClient) sleepBackoff(ctx context.Context, attempt int) bool {
	wait := time.Duration(float64(f.retry.BaseWait) * math.Pow(retryFactor, float64(attempt)))

	quarter := int64(wait) / 4
	jitter := time.Duration(rand.Int63n(2*quarter+1)) - time.Duration(quarter)
	wait += jitter

	if wait > f.retry.Cap {
		wait = f.retry.Cap
	}
	if wait < 0 {
		wait = 0
	}

	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}
