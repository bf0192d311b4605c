package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/aman-churiwal/thought-partner/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix  = "ratelimit:quota:"
	defaultMaxRetries = 100
)

// RedisStore shares quota records between gateway instances. Records carry
// a TTL matching their expiry so Redis drops them without a sweep.
type RedisStore struct {
	redis      *storage.RedisClient
	prefix     string
	maxRetries int
	now        func() time.Time
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{
		redis:      redis,
		prefix:     defaultKeyPrefix,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (models.ClientQuotaRecord, bool, error) {
	data, err := s.redis.Get(ctx, s.redisKey(key))
	if errors.Is(err, redis.Nil) {
		return models.ClientQuotaRecord{}, false, nil
	}
	if err != nil {
		return models.ClientQuotaRecord{}, false, err
	}

	var rec models.ClientQuotaRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return models.ClientQuotaRecord{}, false, fmt.Errorf("failed to decode quota record: %w", err)
	}
	return rec, true, nil
}

func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) (models.ClientQuotaRecord, error) {
	redisKey := s.redisKey(key)

	var written models.ClientQuotaRecord
	txf := func(tx *redis.Tx) error {
		var current *models.ClientQuotaRecord

		data, err := tx.Get(ctx, redisKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var rec models.ClientQuotaRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("failed to decode quota record: %w", err)
			}
			current = &rec
		}

		next := fn(current)
		next.Key = key

		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}

		ttl := next.ExpiresAt().Sub(s.now())
		if ttl < time.Second {
			ttl = time.Second
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, payload, ttl)
			return nil
		})
		if err == nil {
			written = next
		}
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, redisKey)
		if err == nil {
			return written, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return models.ClientQuotaRecord{}, err
	}

	return models.ClientQuotaRecord{}, ErrStoreContention
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, s.redisKey(key))
}

// Sweep is a no-op; expired records are evicted by their TTL.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.redis.ScanPrefix(ctx, s.prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
