//go:build integration

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a Redis container for testing
func setupRedisContainer(t *testing.T) (*redis.RedisContainer, string) {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		redis.WithSnapshotting(10, 1),
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	// Strip "redis://" prefix if present
	addr := endpoint
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		addr = endpoint[8:]
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return redisContainer, addr
}

func TestRedisStore_NewRedisStore_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisStore_NewRedisStore_InvalidAddr(t *testing.T) {
	_, err := NewRedisStore("invalid:99999", "", 0, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for invalid address, got nil")
	}
}

func TestRedisStore_NewRedisStore_EmptyAddr(t *testing.T) {
	_, err := NewRedisStore("", "", 0, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for empty address, got nil")
	}
	if err.Error() != "redis address cannot be empty" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_NewRedisStore_InvalidDB(t *testing.T) {
	_, err := NewRedisStore("localhost:6379", "", -1, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for negative db number, got nil")
	}
	if err.Error() != "redis database number must be >= 0" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_SaveLoad(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	artifact := []byte(`{"station_id":102,"activity_tier":"high"}`)

	if err := store.Save(ctx, 102, artifact); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The artifact lands under the expected key.
	exists, err := store.client.Exists(ctx, "veloguard:model:102").Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists != 1 {
		t.Error("expected key veloguard:model:102 to exist")
	}

	got, err := store.Load(ctx, 102)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != string(artifact) {
		t.Errorf("Load = %q, want %q", got, artifact)
	}
}

func TestRedisStore_Load_NotFound(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	_, err = store.Load(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load err = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_Save_EmptyArtifact(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Save(context.Background(), 1, nil); err == nil {
		t.Fatal("expected error for empty artifact, got nil")
	}
}

func TestRedisStore_TTL(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Second)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, 55, []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Load(ctx, 55); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after TTL: err = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_ConcurrentSave(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(station int) {
			defer wg.Done()
			artifact := []byte(fmt.Sprintf(`{"station_id":%d}`, station))
			if err := store.Save(ctx, station, artifact); err != nil {
				t.Errorf("Save station %d: %v", station, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		if _, err := store.Load(ctx, i); err != nil {
			t.Errorf("Load station %d: %v", i, err)
		}
	}
}
