package models

import "time"

// SecurityEvent is a persisted shield decision worth auditing
type SecurityEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Kind      string    `gorm:"index;not null" json:"kind"`
	ClientIP  string    `json:"client_ip"`
	ClientKey string    `json:"client_key,omitempty"`
	Path      string    `json:"path,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}

// EventKindCount is one row of a per-kind aggregate.
type EventKindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}
