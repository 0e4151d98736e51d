package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veloguard/veloguard/cmd/keeper/metrics"
	"github.com/veloguard/veloguard/pkg/activity"
	"github.com/veloguard/veloguard/pkg/adapters"
	"github.com/veloguard/veloguard/pkg/anomaly"
	"github.com/veloguard/veloguard/pkg/profile"
)

// trainWorkers bounds the number of stations trained concurrently. Models
// are per-station and share no mutable state, so the pool needs no
// coordination beyond the work channel.
const trainWorkers = 4

// Keeper runs the continuous monitoring loop: collect station snapshots,
// derive activity features, profile stations into usage tiers, train one
// anomaly detector per station, and persist the artifacts.
type Keeper struct {
	adapter  adapters.Adapter
	registry *anomaly.Registry
	trainCfg anomaly.TrainConfig
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	records  []activity.Record
	profiles []profile.StationProfile
}

// New creates a keeper.
func New(adapter adapters.Adapter, registry *anomaly.Registry, trainCfg anomaly.TrainConfig, window time.Duration, logger *slog.Logger, m *metrics.Metrics) *Keeper {
	return &Keeper{
		adapter:  adapter,
		registry: registry,
		trainCfg: trainCfg,
		window:   window,
		logger:   logger,
		metrics:  m,
	}
}

// Run executes the training loop until the context is canceled. The first
// run starts immediately.
func (k *Keeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := k.RunOnce(ctx); err != nil {
		k.logger.Error("training run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := k.RunOnce(ctx); err != nil {
				k.logger.Error("training run failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single collect-profile-train cycle. Per-station
// training failures are logged and counted but do not abort the run;
// a collection failure does.
func (k *Keeper) RunOnce(ctx context.Context) error {
	collectStart := time.Now()
	raw, err := k.adapter.Collect(ctx, int(k.window.Seconds()))
	k.metrics.RecordCollect(time.Since(collectStart).Seconds())
	if err != nil {
		k.metrics.RecordError("adapter", "collect")
		return fmt.Errorf("collect snapshots: %w", err)
	}
	if len(raw) == 0 {
		k.metrics.RecordError("adapter", "empty")
		return fmt.Errorf("collect snapshots: adapter %s returned no records", k.adapter.Name())
	}

	records := activity.ComputeFeatures(raw)
	profiles := profile.Build(records, k.trainCfg.Filter)

	k.mu.Lock()
	k.records = records
	k.profiles = profiles
	k.mu.Unlock()

	k.logger.Info("collected station history",
		"records", len(records),
		"stations", len(profiles),
	)

	trained := k.trainAll(ctx, records, profiles)

	k.metrics.SetStationsTrained(trained)
	k.metrics.SetLastRun(float64(time.Now().Unix()))

	k.logger.Info("training run complete",
		"stations_trained", trained,
		"stations_total", len(profiles),
	)
	return nil
}

// trainAll trains every profiled station on a bounded worker pool and
// returns the number of stations whose model was stored.
func (k *Keeper) trainAll(ctx context.Context, records []activity.Record, profiles []profile.StationProfile) int {
	work := make(chan profile.StationProfile)
	var wg sync.WaitGroup

	var mu sync.Mutex
	trained := 0

	for w := 0; w < trainWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				if err := k.trainStation(ctx, records, p); err != nil {
					k.logger.Warn("station training failed",
						"station", p.StationID,
						"tier", p.Tier,
						"error", err,
					)
					k.metrics.RecordError("train", "station")
					continue
				}
				mu.Lock()
				trained++
				mu.Unlock()
			}
		}()
	}

	for _, p := range profiles {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return trained
		case work <- p:
		}
	}
	close(work)
	wg.Wait()

	return trained
}

func (k *Keeper) trainStation(ctx context.Context, records []activity.Record, p profile.StationProfile) error {
	start := time.Now()
	d, err := anomaly.Train(records, p.StationID, p.Tier, k.trainCfg)
	k.metrics.RecordTrain(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	return k.registry.Put(ctx, d)
}

// Records returns the feature-derived history from the last run. The slice
// is never mutated after publication, so callers may read it concurrently.
func (k *Keeper) Records() []activity.Record {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.records
}

// Profiles returns the station profiles from the last run.
func (k *Keeper) Profiles() []profile.StationProfile {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.profiles
}
