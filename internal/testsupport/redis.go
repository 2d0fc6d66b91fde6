package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	redisadapter "dcaadvisor/internal/adapters/redis"
)

// NewTestRedis connects to the configured Redis and returns a client whose
// keys live under a prefix unique to the test; the keys are removed on cleanup.
func NewTestRedis(t *testing.T) *redisadapter.Client {
	t.Helper()

	cfg := RedisConfigFromEnv(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	prefix := "dcaadvisor-test:" + t.Name() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			_ = rdb.Del(ctx, iter.Val()).Err()
		}
		_ = rdb.Close()
	})

	return redisadapter.Wrap(rdb, prefix)
}
