package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
)

// ErrStoreContention is returned when an optimistic update keeps losing races.
var ErrStoreContention = errors.New("quota store: too many concurrent updates")

// UpdateFunc computes the next record from the current one. current is nil
// when the key has no record. It may be called more than once per Update.
type UpdateFunc func(current *models.ClientQuotaRecord) models.ClientQuotaRecord

// Store keeps one quota record per client key.
type Store interface {
	Get(ctx context.Context, key string) (models.ClientQuotaRecord, bool, error)

	// Update applies fn as a single read-modify-write on key and persists
	// the returned record. Concurrent updates to the same key never interleave.
	Update(ctx context.Context, key string, fn UpdateFunc) (models.ClientQuotaRecord, error)

	Delete(ctx context.Context, key string) error

	// Sweep drops records whose window and block have both expired at now.
	Sweep(ctx context.Context, now time.Time) (int, error)

	Len(ctx context.Context) (int, error)
}

// Result is the verdict for a single request
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetTime  time.Time `json:"reset_time"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, set on denial

	// NewlyBlocked is true when this request caused the block.
	NewlyBlocked bool `json:"-"`
}
