package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/aman-churiwal/thought-partner/internal/shield"
)

const (
	defaultEventBatchSize     = 100
	defaultEventFlushInterval = 5 * time.Second
	defaultEventPruneInterval = time.Hour
)

// EventWriter persists security events and prunes expired ones
type EventWriter interface {
	CreateBatch(ctx context.Context, events []models.SecurityEvent) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// SecurityEventRecorder queues shield events and writes them in batches so
// the request path never waits on the database. With a positive retention it
// also deletes events older than the retention period every pruneInterval.
type SecurityEventRecorder struct {
	writer        EventWriter
	events        chan models.SecurityEvent
	batchSize     int
	flushInterval time.Duration
	retention     time.Duration
	pruneInterval time.Duration
	now           func() time.Time
	dropped       atomic.Int64
}

func NewSecurityEventRecorder(writer EventWriter, bufferSize int, retention time.Duration) *SecurityEventRecorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &SecurityEventRecorder{
		writer:        writer,
		events:        make(chan models.SecurityEvent, bufferSize),
		batchSize:     defaultEventBatchSize,
		flushInterval: defaultEventFlushInterval,
		retention:     retention,
		pruneInterval: defaultEventPruneInterval,
		now:           time.Now,
	}
}

// Record implements shield.EventSink. Events are dropped when the buffer is full.
func (r *SecurityEventRecorder) Record(event shield.SecurityEvent) {
	select {
	case r.events <- event.Model():
	default:
		if n := r.dropped.Add(1); n%100 == 1 {
			logger.Warn("Security event buffer full, dropping events", "dropped", n)
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (r *SecurityEventRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Prune deletes events older than the retention period
func (r *SecurityEventRecorder) Prune(ctx context.Context) (int64, error) {
	if r.retention <= 0 {
		return 0, nil
	}
	cutoff := r.now().UTC().Add(-r.retention)
	return r.writer.DeleteOlderThan(ctx, cutoff)
}

// Run batches queued events until ctx is cancelled, then flushes what is left.
func (r *SecurityEventRecorder) Run(ctx context.Context) {
	batch := make([]models.SecurityEvent, 0, r.batchSize)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	var pruneC <-chan time.Time
	if r.retention > 0 {
		pruneTicker := time.NewTicker(r.pruneInterval)
		defer pruneTicker.Stop()
		pruneC = pruneTicker.C
	}

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := r.writer.CreateBatch(ctx, batch); err != nil {
			logger.Error("Failed to insert security events", "count", len(batch), "error", err)
		}
		batch = make([]models.SecurityEvent, 0, r.batchSize)
	}

	for {
		select {
		case event := <-r.events:
			batch = append(batch, event)

			// Insert when batch is full
			if len(batch) >= r.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-pruneC:
			deleted, err := r.Prune(ctx)
			if err != nil {
				logger.Error("Failed to prune security events", "error", err)
			} else if deleted > 0 {
				logger.Info("Pruned security events", "deleted", deleted, "retention", r.retention.String())
			}
		case <-ctx.Done():
		drain:
			for {
				select {
				case event := <-r.events:
					batch = append(batch, event)
				default:
					break drain
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(shutdownCtx)
			cancel()
			return
		}
	}
}
