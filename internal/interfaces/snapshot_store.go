package interfaces

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound is returned by Read when nothing has been written yet.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists one repository snapshot as an opaque blob.
// Write replaces the previous snapshot as a whole.
//
//go:generate mockgen -destination=mocks/mock_snapshot_store.go -package=mocks -source=snapshot_store.go SnapshotStore
type SnapshotStore interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Location() string
}
