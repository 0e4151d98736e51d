// Package storage provides model artifact storage implementations.
//
// A trained anomaly model is persisted as one opaque byte blob per station.
// Stores never interpret the bytes; encoding and decoding belong to the
// model packages.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no artifact exists for the station.
// Callers must treat it as a distinct condition, never as an empty model.
var ErrNotFound = errors.New("model artifact not found")

// Store persists one immutable model artifact per station. Concurrent
// writes to distinct stations are safe; concurrent writes to the same
// station must be serialized by the caller.
type Store interface {
	Save(ctx context.Context, stationID int, artifact []byte) error
	Load(ctx context.Context, stationID int) ([]byte, error)
}
