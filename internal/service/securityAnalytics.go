package service

import (
	"context"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
)

// EventQuerier reads persisted security events
type EventQuerier interface {
	FindByTimeRange(ctx context.Context, kind string, from, to time.Time, limit, offset int) ([]models.SecurityEvent, error)
	CountByKind(ctx context.Context, from, to time.Time) ([]models.EventKindCount, error)
	TopClients(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error)
}

type SecurityAnalyticsService struct {
	repository EventQuerier
}

func NewSecurityAnalyticsService(repo EventQuerier) *SecurityAnalyticsService {
	return &SecurityAnalyticsService{repository: repo}
}

// Holds security event summary data
type SecuritySummary struct {
	From       time.Time                `json:"from"`
	To         time.Time                `json:"to"`
	Total      int64                    `json:"total"`
	ByKind     map[string]int64         `json:"by_kind"`
	TopClients []map[string]interface{} `json:"top_clients"`
}

// Retrieves the event summary for a time range
func (s *SecurityAnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*SecuritySummary, error) {
	summary := &SecuritySummary{
		From:       from,
		To:         to,
		ByKind:     make(map[string]int64),
		TopClients: []map[string]interface{}{},
	}

	counts, err := s.repository.CountByKind(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		summary.ByKind[c.Kind] = c.Count
		summary.Total += c.Count
	}

	if summary.Total == 0 {
		return summary, nil
	}

	top, err := s.repository.TopClients(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	if top != nil {
		summary.TopClients = top
	}

	return summary, nil
}

// Retrieves events with pagination and an optional kind filter
func (s *SecurityAnalyticsService) GetEvents(ctx context.Context, kind string, from, to time.Time, limit, offset int) ([]models.SecurityEvent, error) {
	events, err := s.repository.FindByTimeRange(ctx, kind, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.SecurityEvent{}
	}
	return events, nil
}
