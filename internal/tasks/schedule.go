package tasks

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dmitrijs2005/aasindex/internal/models"
)

// InitialRetryDelay is the first delay after a failed scan.
const InitialRetryDelay = time.Second

// NextDelay returns how long to wait before the next scan of an endpoint
// whose previous scan ran from start to end. The second result is false
// when the schedule does not repeat. A scan that overran its interval is
// followed by a full interval; a schedule without interval uses def.
func NextDelay(schedule *models.Schedule, start, end time.Time, def time.Duration) (time.Duration, bool) {
	typ := models.ScheduleEvery
	if schedule != nil && schedule.Type != "" {
		typ = schedule.Type
	}
	if typ != models.ScheduleEvery {
		return 0, false
	}

	interval := schedule.Interval()
	if interval <= 0 {
		interval = def
	}
	elapsed := end.Sub(start)
	if elapsed < 0 || elapsed >= interval {
		return interval, true
	}
	return interval - elapsed, true
}

// FailureDelay returns the delay after the given number of consecutive
// failures: exponential from InitialRetryDelay, capped at limit.
func FailureDelay(failures int, limit time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}
	if limit <= 0 {
		limit = InitialRetryDelay
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(InitialRetryDelay, limit)
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = limit
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.InitialInterval
	for range failures {
		d = b.NextBackOff()
	}
	return d
}
