package installs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyInstances   = "salonbridge:installs"
	keyInstalledAt = "salonbridge:installs:at"
)

// RedisConfig holds the connection settings for NewRedisClient.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// RedisRegistry stores installs as a set of instance ids plus a hash of
// install times, so they survive restarts and are shared between replicas.
type RedisRegistry struct {
	rdb redis.UniversalClient
}

func NewRedisRegistry(rdb redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

// Add records an install. Reinstalling keeps the first install time.
func (r *RedisRegistry) Add(ctx context.Context, instanceID string, at time.Time) error {
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, keyInstances, instanceID)
	pipe.HSetNX(ctx, keyInstalledAt, instanceID, strconv.FormatInt(at.UTC().UnixMilli(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording install: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Remove(ctx context.Context, instanceID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.SRem(ctx, keyInstances, instanceID)
	pipe.HDel(ctx, keyInstalledAt, instanceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("removing install: %w", err)
	}
	return nil
}

func (r *RedisRegistry) List(ctx context.Context) ([]Install, error) {
	ids, err := r.rdb.SMembers(ctx, keyInstances).Result()
	if err != nil {
		return nil, fmt.Errorf("listing installs: %w", err)
	}
	if len(ids) == 0 {
		return []Install{}, nil
	}

	times, err := r.rdb.HMGet(ctx, keyInstalledAt, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading install times: %w", err)
	}

	out := make([]Install, 0, len(ids))
	for i, id := range ids {
		inst := Install{InstanceID: id}
		if s, ok := times[i].(string); ok {
			if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
				inst.InstalledAt = time.UnixMilli(ms).UTC()
			}
		}
		out = append(out, inst)
	}
	sortInstalls(out)
	return out, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
