package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	artifact := []byte(`{"station_id":12}`)
	if err := store.Save(ctx, 12, artifact); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, 12)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(artifact) {
		t.Errorf("Load = %q, want %q", got, artifact)
	}
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(99) err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_SaveEmpty(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Save(context.Background(), 1, nil); err == nil {
		t.Fatal("expected error for empty artifact, got nil")
	}
}

func TestMemoryStore_SaveCopiesBytes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	artifact := []byte("abc")
	if err := store.Save(ctx, 1, artifact); err != nil {
		t.Fatalf("Save: %v", err)
	}
	artifact[0] = 'z'

	got, err := store.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("Load = %q, want %q (caller mutation leaked in)", got, "abc")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, 5, []byte("v1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, 5, []byte("v2")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, 5)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Load = %q, want %q", got, "v2")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, 3, []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !store.Delete(3) {
		t.Error("Delete(3) = false, want true")
	}
	if store.Delete(3) {
		t.Error("second Delete(3) = true, want false")
	}
	if _, err := store.Load(ctx, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Save(ctx, 1, []byte("x")); err == nil {
		t.Error("Save with canceled context should fail")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStoreWithTTL(20*time.Millisecond, 10*time.Millisecond)
	defer store.Stop()
	ctx := context.Background()

	if err := store.Save(ctx, 7, []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, err := store.Load(ctx, 7); errors.Is(err, ErrNotFound) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("artifact never expired")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
