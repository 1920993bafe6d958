package tasks

import (
	"context"
	"time"

	"github.com/amirphl/Susanoo/utils"
)

// RetryPolicy bounds the attempts of a unit and spaces them out
type RetryPolicy struct {
	MaxAttempts int
	// Delays[n-1] is the wait after failed attempt n; the last entry repeats
	Delays []time.Duration
}

// CommissionRetryPolicy covers commission, clawback, settlement and tier work
func CommissionRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: utils.DefaultMaxAttempts,
		Delays:      []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second},
	}
}

// DistributionRetryPolicy covers profit pool runs
func DistributionRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: utils.DefaultMaxAttempts,
		Delays:      []time.Duration{60 * time.Second, 120 * time.Second, 300 * time.Second},
	}
}

// Delay returns the backoff after the given failed attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Delays) == 0 || attempt < 1 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(p.Delays) {
		idx = len(p.Delays) - 1
	}
	return p.Delays[idx]
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// policyFor picks the retry policy of a task type
func policyFor(t TaskType, commission, distribution RetryPolicy) RetryPolicy {
	switch t {
	case TypeDistributeAnnualProfit, TypeDistributeQuarterlyBonus:
		return distribution
	default:
		return commission
	}
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
