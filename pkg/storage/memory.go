package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps model artifacts in process memory. It is safe for
// concurrent use by multiple goroutines.
//
// With a TTL configured, a background goroutine removes artifacts that have
// not been rewritten within the TTL, so a station that disappears from the
// feed eventually stops serving a stale model. For multi-instance
// deployments use RedisStore instead.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[int]memoryArtifact

	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopOnce      sync.Once
}

type memoryArtifact struct {
	data    []byte
	savedAt time.Time
}

// NewMemoryStore creates an in-memory artifact store with no TTL. Artifacts
// live until overwritten.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[int]memoryArtifact)}
}

// NewMemoryStoreWithTTL creates an in-memory store whose artifacts expire
// after ttl. Stop must be called to release the cleanup goroutine.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &MemoryStore{
		artifacts:     make(map[int]memoryArtifact),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go s.runCleanup()

	return s
}

// Stop shuts down the cleanup goroutine. Safe to call multiple times or on
// a store without TTL.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
		<-s.cleanupDone
		s.cleanupTicker.Stop()
	})
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for stationID, a := range s.artifacts {
		if now.Sub(a.savedAt) > s.ttl {
			delete(s.artifacts, stationID)
		}
	}
}

// Save stores an artifact for a station, replacing any existing one.
func (s *MemoryStore) Save(ctx context.Context, stationID int, artifact []byte) error {
	if len(artifact) == 0 {
		return fmt.Errorf("station %d: artifact cannot be empty", stationID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cp := make([]byte, len(artifact))
	copy(cp, artifact)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[stationID] = memoryArtifact{data: cp, savedAt: time.Now()}
	return nil
}

// Load retrieves the artifact for a station, or ErrNotFound.
func (s *MemoryStore) Load(ctx context.Context, stationID int) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, found := s.artifacts[stationID]
	if !found {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(a.data))
	copy(cp, a.data)
	return cp, nil
}

// Len returns the number of stored artifacts. Primarily for tests and
// metrics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}

// Delete removes a station's artifact, reporting whether one existed.
func (s *MemoryStore) Delete(stationID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.artifacts[stationID]
	delete(s.artifacts, stationID)
	return existed
}
