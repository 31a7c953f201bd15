package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Stores commands that could not be delivered in redis sets, one set per
// channel key. The sets are keyed by $prefix:redeliver:delivery-failures:$key
type RedisOutcomeStorage struct {
	Redis  *redis.Client
	Config *RedisOutcomeStorageConfig
}

type RedisOutcomeStorageConfig struct {
	KeyPrefix string
	// FailureTTL expires a failure set that has not been touched for the
	// given duration. Zero keeps failures forever.
	FailureTTL time.Duration
}

func (s *RedisOutcomeStorage) HasFailed(ctx context.Context, key string, command string) (bool, error) {
	return s.Redis.SIsMember(ctx, s.key(key), command).Result()
}

func (s *RedisOutcomeStorage) MarkFailure(ctx context.Context, key string, command string) error {
	if err := s.Redis.SAdd(ctx, s.key(key), command).Err(); err != nil {
		return fmt.Errorf("mark failure of %q: %w", command, err)
	}

	if ttl := s.failureTTL(); ttl > 0 {
		if err := s.Redis.Expire(ctx, s.key(key), ttl).Err(); err != nil {
			return fmt.Errorf("expire failures of %q: %w", key, err)
		}
	}

	return nil
}

func (s *RedisOutcomeStorage) MarkSuccess(ctx context.Context, key string, command string) error {
	if err := s.Redis.SRem(ctx, s.key(key), command).Err(); err != nil {
		return fmt.Errorf("mark success of %q: %w", command, err)
	}

	return nil
}

// Failures lists the commands of a channel that are still marked as failed.
func (s *RedisOutcomeStorage) Failures(ctx context.Context, key string) ([]string, error) {
	return s.Redis.SMembers(ctx, s.key(key)).Result()
}

func (s *RedisOutcomeStorage) key(key string) string {
	return strings.TrimLeft(fmt.Sprintf(
		"%s:redeliver:delivery-failures:%s",
		s.keyPrefix(),
		key,
	), ":")
}

func (s *RedisOutcomeStorage) keyPrefix() string {
	if s.Config != nil {
		return s.Config.KeyPrefix
	}

	return ""
}

func (s *RedisOutcomeStorage) failureTTL() time.Duration {
	if s.Config != nil {
		return s.Config.FailureTTL
	}

	return 0
}
