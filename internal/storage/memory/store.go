package memory

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/deskbank/internal/interfaces"
)

// SnapshotStore keeps the latest snapshot in memory. It is safe for
// concurrent use and hands out copies so callers can't modify stored bytes.
type SnapshotStore struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// NewSnapshotStoreWith seeds the store with an existing snapshot.
func NewSnapshotStoreWith(data []byte) *SnapshotStore {
	return &SnapshotStore{data: append([]byte(nil), data...)}
}

func (m *SnapshotStore) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil, interfaces.ErrSnapshotNotFound
	}
	copied := make([]byte, len(m.data))
	copy(copied, m.data)
	return copied, nil
}

func (m *SnapshotStore) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = append(m.data[:0:0], data...)
	m.writes++
	return nil
}

func (m *SnapshotStore) Location() string { return "memory" }

// Writes reports how many snapshots have been written.
func (m *SnapshotStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Compile-time check: ensure SnapshotStore implements SnapshotStore interface
var _ interfaces.SnapshotStore = (*SnapshotStore)(nil)
