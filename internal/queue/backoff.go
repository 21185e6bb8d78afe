package queue

import (
	"math"
	"time"

	"github.com/sethvargo/go-retry"
)

// Options are the per-registry defaults applied to every queue handle.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// RetryDelay returns how long a job waits before its next attempt after
// attempt failures: BackoffBase doubled per attempt, ±10% jitter, capped at
// BackoffMax. A zero base re-appends immediately.
func (o Options) RetryDelay(attempt int) time.Duration {
	if o.BackoffBase <= 0 || attempt < 1 {
		return 0
	}

	ceiling := time.Duration(math.MaxInt64 / 4)
	if o.BackoffMax > 0 && o.BackoffMax < ceiling {
		ceiling = o.BackoffMax
	}

	// stop doubling once the cap is reached so the shift cannot overflow
	steps := 1
	for steps < attempt && o.BackoffBase<<(steps-1) < ceiling {
		steps++
	}

	b := retry.WithJitterPercent(10, retry.NewExponential(o.BackoffBase))
	if o.BackoffMax > 0 {
		b = retry.WithCappedDuration(o.BackoffMax, b)
	}

	var d time.Duration
	for i := 0; i < steps; i++ {
		d, _ = b.Next()
	}
	return d
}
