package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SweepRemovesOnlyExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	put := func(key string, rec models.ClientQuotaRecord) {
		_, err := store.Update(ctx, key, func(*models.ClientQuotaRecord) models.ClientQuotaRecord { return rec })
		require.NoError(t, err)
	}

	put("expired", models.ClientQuotaRecord{WindowResetAt: now.Add(-time.Second)})
	put("live-window", models.ClientQuotaRecord{WindowResetAt: now.Add(time.Second)})
	put("still-blocked", models.ClientQuotaRecord{
		WindowResetAt: now.Add(-time.Minute),
		IsBlocked:     true,
		BlockedUntil:  now.Add(time.Minute),
	})
	put("block-over", models.ClientQuotaRecord{
		WindowResetAt: now.Add(-time.Minute),
		IsBlocked:     true,
		BlockedUntil:  now.Add(-time.Second),
	})

	removed, err := store.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ := store.Get(ctx, "expired")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "block-over")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "live-window")
	assert.True(t, ok)
	_, ok, _ = store.Get(ctx, "still-blocked")
	assert.True(t, ok)

	n, _ := store.Len(ctx)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_UpdateSeesCurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var seen []*models.ClientQuotaRecord
	inc := func(cur *models.ClientQuotaRecord) models.ClientQuotaRecord {
		seen = append(seen, cur)
		if cur == nil {
			return models.ClientQuotaRecord{RequestCount: 1}
		}
		next := *cur
		next.RequestCount++
		return next
	}

	_, err := store.Update(ctx, "k", inc)
	require.NoError(t, err)
	rec, err := store.Update(ctx, "k", inc)
	require.NoError(t, err)

	assert.Nil(t, seen[0])
	require.NotNil(t, seen[1])
	assert.Equal(t, 2, rec.RequestCount)
	assert.Equal(t, "k", rec.Key)
}

func TestSweeper_ExpiredClientStartsOver(t *testing.T) {
	store := NewMemoryStore()
	limiter, clock := newTestLimiter(store, 3, time.Minute, 5*time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = limiter.Allow(ctx, "client")
	}

	sweeper := NewSweeper(store, time.Minute)
	sweeper.now = clock.Now

	clock.Advance(4 * time.Minute)
	assert.Equal(t, 0, sweeper.SweepOnce(ctx), "still blocked")

	clock.Advance(time.Minute)
	assert.Equal(t, 1, sweeper.SweepOnce(ctx))

	_, ok, _ := store.Get(ctx, "client")
	assert.False(t, ok)

	res, err := limiter.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestSweeper_StopsOnCancel(t *testing.T) {
	sweeper := NewSweeper(NewMemoryStore(), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("memory", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore("redis", nil)
	assert.Error(t, err)

	_, err = NewStore("etcd", nil)
	assert.Error(t, err)
}
