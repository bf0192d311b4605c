package ratelimit

import (
	"context"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
)

// FixedWindowLimiter counts requests per client in fixed windows. A client
// that asks past the limit is blocked for blockDuration, which outlives the
// window it was counted in.
type FixedWindowLimiter struct {
	store         Store
	limit         int
	window        time.Duration
	blockDuration time.Duration
	now           func() time.Time
}

func NewFixedWindow(store Store, limit int, window, blockDuration time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:         store,
		limit:         limit,
		window:        window,
		blockDuration: blockDuration,
		now:           time.Now,
	}
}

// SetClock overrides the time source
func (f *FixedWindowLimiter) SetClock(now func() time.Time) {
	f.now = now
}

func (f *FixedWindowLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := f.now()

	var result Result
	_, err := f.store.Update(ctx, key, func(current *models.ClientQuotaRecord) models.ClientQuotaRecord {
		var next models.ClientQuotaRecord
		next, result = f.decide(key, current, now)
		return next
	})
	if err != nil {
		return Result{}, err
	}

	return result, nil
}

func (f *FixedWindowLimiter) decide(key string, current *models.ClientQuotaRecord, now time.Time) (models.ClientQuotaRecord, Result) {
	var rec models.ClientQuotaRecord
	if current != nil {
		rec = *current
	}

	if current == nil || startsFreshWindow(rec, now) {
		rec = models.ClientQuotaRecord{
			Key:           key,
			WindowResetAt: now.Add(f.window),
		}
	}

	if rec.BlockActive(now) {
		return rec, f.denied(rec, now, false)
	}

	if rec.RequestCount >= f.limit {
		rec.IsBlocked = true
		rec.BlockedUntil = now.Add(f.blockDuration)
		return rec, f.denied(rec, now, true)
	}

	rec.RequestCount++

	return rec, Result{
		Allowed:   true,
		Limit:     f.limit,
		Remaining: f.limit - rec.RequestCount,
		ResetTime: rec.WindowResetAt,
	}
}

// A block that has run out starts a new window even if the old one has not
// rolled over yet.
func startsFreshWindow(rec models.ClientQuotaRecord, now time.Time) bool {
	if rec.IsBlocked {
		return !now.Before(rec.BlockedUntil)
	}
	return !now.Before(rec.WindowResetAt)
}

func (f *FixedWindowLimiter) denied(rec models.ClientQuotaRecord, now time.Time, newlyBlocked bool) Result {
	return Result{
		Allowed:      false,
		Limit:        f.limit,
		Remaining:    0,
		ResetTime:    rec.BlockedUntil,
		RetryAfter:   ceilSeconds(rec.BlockedUntil.Sub(now)),
		NewlyBlocked: newlyBlocked,
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Reset forgets everything known about key
func (f *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	return f.store.Delete(ctx, key)
}

func (f *FixedWindowLimiter) Limit() int {
	return f.limit
}

func (f *FixedWindowLimiter) Window() time.Duration {
	return f.window
}

func (f *FixedWindowLimiter) BlockDuration() time.Duration {
	return f.blockDuration
}

func (f *FixedWindowLimiter) Store() Store {
	return f.store
}
