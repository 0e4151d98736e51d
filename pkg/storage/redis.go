package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis, enabling several keeper instances
// to share one set of trained models. Artifacts expire after the configured
// TTL so retired stations age out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed artifact store.
//
// Parameters:
//   - addr: Redis server address (e.g. "localhost:6379")
//   - password: Redis password (empty string for no auth)
//   - db: Redis database number
//   - ttl: artifact expiration (0 uses a default of 24 hours)
//
// Returns an error if the connection to Redis fails.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}

	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func modelKey(stationID int) string {
	return fmt.Sprintf("veloguard:model:%d", stationID)
}

// Save stores a model artifact under "veloguard:model:{station}".
func (r *RedisStore) Save(ctx context.Context, stationID int, artifact []byte) error {
	if len(artifact) == 0 {
		return fmt.Errorf("station %d: artifact cannot be empty", stationID)
	}

	if err := r.client.Set(ctx, modelKey(stationID), artifact, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store model for station %d: %w", stationID, err)
	}
	return nil
}

// Load retrieves the model artifact for a station, or ErrNotFound.
func (r *RedisStore) Load(ctx context.Context, stationID int) ([]byte, error) {
	data, err := r.client.Get(ctx, modelKey(stationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load model for station %d: %w", stationID, err)
	}
	return data, nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection health.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
