package models

import "time"

// ClientQuotaRecord is the per-client fixed-window counter.
type ClientQuotaRecord struct {
	Key           string    `json:"key"`
	RequestCount  int       `json:"request_count"`
	WindowResetAt time.Time `json:"window_reset_at"`
	IsBlocked     bool      `json:"is_blocked"`
	BlockedUntil  time.Time `json:"blocked_until,omitempty"`
}

// BlockActive reports whether the record denies every request at now.
func (r *ClientQuotaRecord) BlockActive(now time.Time) bool {
	return r.IsBlocked && now.Before(r.BlockedUntil)
}

// Expired reports whether both the window and any block have passed.
func (r *ClientQuotaRecord) Expired(now time.Time) bool {
	if now.Before(r.WindowResetAt) {
		return false
	}
	return r.BlockedUntil.IsZero() || !now.Before(r.BlockedUntil)
}

// ExpiresAt is the moment the record becomes collectable.
func (r *ClientQuotaRecord) ExpiresAt() time.Time {
	if r.BlockedUntil.After(r.WindowResetAt) {
		return r.BlockedUntil
	}
	return r.WindowResetAt
}
