package ratelimit

import (
	"fmt"

	"github.com/aman-churiwal/thought-partner/internal/storage"
)

// NewStore builds the quota store named by kind ("memory" or "redis")
func NewStore(kind string, redis *storage.RedisClient) (Store, error) {
	switch kind {
	case "memory", "":
		return NewMemoryStore(), nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("quota store %q requires a redis connection", kind)
		}
		return NewRedisStore(redis), nil
	default:
		return nil, fmt.Errorf("unknown quota store: %s", kind)
	}
}
