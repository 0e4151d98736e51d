package anomaly

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/veloguard/veloguard/pkg/storage"
)

// ErrModelNotFound is returned when a station has no trained model, either
// cached or persisted. Callers must surface it, never substitute a default
// prediction.
var ErrModelNotFound = errors.New("no trained anomaly model for station")

// Registry is the map of trained detectors keyed by station, backed by an
// artifact store. Detectors are loaded on demand, cached, and never mutated
// after loading. Concurrent access for different stations needs no
// coordination; retraining the same station concurrently must be serialized
// by the caller.
type Registry struct {
	store storage.Store

	mu    sync.RWMutex
	cache map[int]*Detector
}

// NewRegistry creates a registry backed by the given artifact store.
func NewRegistry(store storage.Store) *Registry {
	return &Registry{
		store: store,
		cache: make(map[int]*Detector),
	}
}

// Get returns the detector for a station, loading and decoding the
// persisted artifact on first use. Returns ErrModelNotFound if the station
// was never trained.
func (r *Registry) Get(ctx context.Context, stationID int) (*Detector, error) {
	r.mu.RLock()
	d, cached := r.cache[stationID]
	r.mu.RUnlock()
	if cached {
		return d, nil
	}

	data, err := r.store.Load(ctx, stationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: station %d", ErrModelNotFound, stationID)
		}
		return nil, fmt.Errorf("load model for station %d: %w", stationID, err)
	}

	d, err = UnmarshalDetector(data)
	if err != nil {
		return nil, fmt.Errorf("station %d: %w", stationID, err)
	}
	if d.StationID != stationID {
		return nil, fmt.Errorf("station %d: artifact belongs to station %d", stationID, d.StationID)
	}

	r.mu.Lock()
	r.cache[stationID] = d
	r.mu.Unlock()

	return d, nil
}

// Put persists a freshly trained detector and replaces any cached one.
func (r *Registry) Put(ctx context.Context, d *Detector) error {
	artifact, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("encode model for station %d: %w", d.StationID, err)
	}

	if err := r.store.Save(ctx, d.StationID, artifact); err != nil {
		return fmt.Errorf("save model for station %d: %w", d.StationID, err)
	}

	r.mu.Lock()
	r.cache[d.StationID] = d
	r.mu.Unlock()

	return nil
}

// Evict drops a station's cached detector, forcing the next Get to reload
// from the store.
func (r *Registry) Evict(stationID int) {
	r.mu.Lock()
	delete(r.cache, stationID)
	r.mu.Unlock()
}
