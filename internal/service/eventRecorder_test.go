package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/aman-churiwal/thought-partner/internal/shield"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventWriter struct {
	mu      sync.Mutex
	batches [][]models.SecurityEvent
	cutoffs []time.Time
	err     error
}

func (f *fakeEventWriter) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return 2, f.err
}

func (f *fakeEventWriter) pruned() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.cutoffs...)
}

func (f *fakeEventWriter) CreateBatch(ctx context.Context, events []models.SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]models.SecurityEvent(nil), events...))
	return f.err
}

func (f *fakeEventWriter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func event(kind shield.EventKind, ip string) shield.SecurityEvent {
	return shield.SecurityEvent{
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{shield.DetailClientIP: ip},
	}
}

func TestSecurityEventRecorder_FlushesFullBatch(t *testing.T) {
	writer := &fakeEventWriter{}
	rec := NewSecurityEventRecorder(writer, 10, 0)
	rec.batchSize = 3
	rec.flushInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	for i := 0; i < 3; i++ {
		rec.Record(event(shield.EventRateLimit, "1.2.3.4"))
	}

	require.Eventually(t, func() bool { return writer.total() == 3 }, time.Second, 5*time.Millisecond)

	writer.mu.Lock()
	assert.Equal(t, "rate_limit", writer.batches[0][0].Kind)
	assert.Equal(t, "1.2.3.4", writer.batches[0][0].ClientIP)
	writer.mu.Unlock()
}

func TestSecurityEventRecorder_FlushesOnTick(t *testing.T) {
	writer := &fakeEventWriter{}
	rec := NewSecurityEventRecorder(writer, 10, 0)
	rec.flushInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record(event(shield.EventInvalidInput, "5.6.7.8"))

	require.Eventually(t, func() bool { return writer.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSecurityEventRecorder_FlushesOnShutdown(t *testing.T) {
	writer := &fakeEventWriter{}
	rec := NewSecurityEventRecorder(writer, 10, 0)
	rec.flushInterval = time.Hour

	for i := 0; i < 4; i++ {
		rec.Record(event(shield.EventAPIKeyFailed, "9.9.9.9"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
	assert.Equal(t, 4, writer.total())
}

func TestSecurityEventRecorder_DropsWhenFull(t *testing.T) {
	rec := NewSecurityEventRecorder(&fakeEventWriter{}, 2, 0)

	for i := 0; i < 5; i++ {
		rec.Record(event(shield.EventRateLimit, "1.1.1.1"))
	}

	assert.Equal(t, int64(3), rec.Dropped())
}

func TestSecurityEventRecorder_WriteErrorIsSwallowed(t *testing.T) {
	writer := &fakeEventWriter{err: errors.New("db down")}
	rec := NewSecurityEventRecorder(writer, 10, 0)
	rec.batchSize = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record(event(shield.EventRateLimit, "1.1.1.1"))
	rec.Record(event(shield.EventRateLimit, "1.1.1.1"))

	require.Eventually(t, func() bool { return writer.total() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSecurityEventRecorder_PrunesOnTick(t *testing.T) {
	writer := &fakeEventWriter{}
	rec := NewSecurityEventRecorder(writer, 10, 30*24*time.Hour)
	rec.flushInterval = time.Hour
	rec.pruneInterval = 10 * time.Millisecond
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	require.Eventually(t, func() bool { return len(writer.pruned()) > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, time.Date(2026, 9, 19, 12, 0, 0, 0, time.UTC), writer.pruned()[0])
}

func TestSecurityEventRecorder_ZeroRetentionKeepsEvents(t *testing.T) {
	writer := &fakeEventWriter{}
	rec := NewSecurityEventRecorder(writer, 10, 0)
	rec.pruneInterval = time.Millisecond

	deleted, err := rec.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rec.Run(ctx)

	assert.Empty(t, writer.pruned())
}
