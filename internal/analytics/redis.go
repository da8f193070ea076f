// Package analytics mirrors rate-limit decisions into Redis so usage survives
// restarts and can be read by operators.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

const keyPrefix = "reicgw:usage"

// Event is one counted outcome for a bucket period, e.g. an allowed
// reservation or a soft fallback for the enrichment quota.
type Event struct {
	Bucket  domain.RequestType
	Period  string
	Outcome string
}

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisSink returns a sink whose hashes expire after retention. The
// retention must cover the longest window in use (monthly buckets).
func NewRedisSink(client *redis.Client, retention time.Duration) *RedisSink {
	if retention <= 0 {
		retention = 35 * 24 * time.Hour
	}
	return &RedisSink{client: client, retention: retention}
}

func (s *RedisSink) Write(ctx context.Context, ev Event) error {
	key := buildKey(ev.Bucket, ev.Period)

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, ev.Outcome, 1)
	pipe.Expire(ctx, key, s.retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

// Read returns outcome counters for one bucket period.
func (s *RedisSink) Read(ctx context.Context, bucket domain.RequestType, period string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, buildKey(bucket, period)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s.%s: %w", bucket, field, err)
		}
		out[field] = n
	}
	return out, nil
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func buildKey(bucket domain.RequestType, period string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, bucket, period)
}
