package repository

import (
	"context"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/aman-churiwal/thought-partner/internal/storage"
)

type SecurityEventRepository struct {
	db *storage.Postgres
}

func NewSecurityEventRepository(db *storage.Postgres) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Inserts multiple events (for batch insertion)
func (r *SecurityEventRepository) CreateBatch(ctx context.Context, events []models.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&events).Error
}

// Retrieves events within a time range, newest first, optionally filtered by kind
func (r *SecurityEventRepository) FindByTimeRange(ctx context.Context, kind string, from, to time.Time, limit, offset int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent

	query := r.db.DB.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", from, to)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	err := query.
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error

	return events, err
}

// Counts events per kind in a time range
func (r *SecurityEventRepository) CountByKind(ctx context.Context, from, to time.Time) ([]models.EventKindCount, error) {
	var counts []models.EventKindCount

	err := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select("kind, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("kind").
		Order("count DESC").
		Scan(&counts).Error

	return counts, err
}

// Returns the clients with the most events in a time range
func (r *SecurityEventRepository) TopClients(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select("client_ip, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("client_ip").
		Order("count DESC").
		Limit(limit).
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ip string
		var count int64

		if err := rows.Scan(&ip, &count); err != nil {
			return nil, err
		}

		results = append(results, map[string]interface{}{
			"client_ip": ip,
			"count":     count,
		})
	}

	return results, rows.Err()
}

// Deletes events older than the specified time
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.SecurityEvent{})

	return result.RowsAffected, result.Error
}
