package keys

import (
	"context"

	rds "autopress/internal/platform/redis"
)

// RedisStore persists credential state in redis hashes so cooldowns and
// exhaustion survive restarts.
type RedisStore struct{ redis *rds.Service }

func NewRedisStore(redis *rds.Service) *RedisStore { return &RedisStore{redis: redis} }

func (s *RedisStore) Load(ctx context.Context, service, id string) (map[string]string, error) {
	return s.redis.HashGetAll(ctx, stateKey(service, id))
}

func (s *RedisStore) Save(ctx context.Context, service, id string, fields map[string]interface{}) error {
	return s.redis.HashSet(ctx, stateKey(service, id), fields)
}

func stateKey(service, id string) string { return "keys:" + service + ":" + id }
