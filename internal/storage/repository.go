package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	interfaces "github.com/sheikh-saqib/deskbank/internal/interfaces"
)

// ErrCorruptSnapshot means a snapshot exists but could not be decoded. The
// repository is left empty when Load returns it.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Codec maps an entity to its key and its persisted record.
type Codec[T any, R any] struct {
	Key    func(T) string
	Encode func(T) R
	Decode func(R) (T, error)
}

// Repository is an in-memory id -> entity map that writes its full snapshot
// to a SnapshotStore after every mutation.
type Repository[T any, R any] struct {
	name  string
	mu    sync.RWMutex
	items map[string]T
	store interfaces.SnapshotStore
	codec Codec[T, R]
}

func NewRepository[T any, R any](name string, store interfaces.SnapshotStore, codec Codec[T, R]) *Repository[T, R] {
	return &Repository[T, R]{
		name:  name,
		items: make(map[string]T),
		store: store,
		codec: codec,
	}
}

// Tx is the view handed to Modify callbacks. It must not escape the callback.
type Tx[T any] struct {
	items map[string]T
	key   func(T) string
	dirty bool
}

func (tx *Tx[T]) Get(id string) (T, bool) {
	item, ok := tx.items[id]
	return item, ok
}

func (tx *Tx[T]) Put(item T) {
	tx.items[tx.key(item)] = item
	tx.dirty = true
}

func (tx *Tx[T]) Remove(id string) bool {
	if _, ok := tx.items[id]; !ok {
		return false
	}
	delete(tx.items, id)
	tx.dirty = true
	return true
}

// Touch marks the snapshot for saving after an item was changed in place.
func (tx *Tx[T]) Touch() { tx.dirty = true }

func (tx *Tx[T]) Find(match func(T) bool) []T {
	var out []T
	for _, item := range tx.items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out
}

// Modify runs fn with the write lock held and saves one snapshot if fn
// changed something. Checks and mutations made inside fn are never
// interleaved with other writers or seen half-done by readers.
func (r *Repository[T, R]) Modify(ctx context.Context, fn func(tx *Tx[T]) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &Tx[T]{items: r.items, key: r.codec.Key}
	err := fn(tx)
	if tx.dirty {
		r.persistLocked(ctx)
	}
	return err
}

// Add inserts or overwrites the item and persists.
func (r *Repository[T, R]) Add(ctx context.Context, item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.codec.Key(item)] = item
	r.persistLocked(ctx)
}

func (r *Repository[T, R]) GetByID(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	return item, ok
}

// GetAll returns every item in no particular order.
func (r *Repository[T, R]) GetAll() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out
}

// Find returns the items matching the predicate.
func (r *Repository[T, R]) Find(match func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []T
	for _, item := range r.items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out
}

// Update replaces an existing item and persists. It reports false when the
// item is unknown.
func (r *Repository[T, R]) Update(ctx context.Context, item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.codec.Key(item)
	if _, ok := r.items[id]; !ok {
		return false
	}
	r.items[id] = item
	r.persistLocked(ctx)
	return true
}

func (r *Repository[T, R]) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	r.persistLocked(ctx)
	return true
}

func (r *Repository[T, R]) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[id]
	return ok
}

func (r *Repository[T, R]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Clear removes every item and persists the empty snapshot.
func (r *Repository[T, R]) Clear(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[string]T)
	r.persistLocked(ctx)
}

// Save writes the current snapshot.
func (r *Repository[T, R]) Save(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := r.encodeLocked()
	if err != nil {
		return err
	}
	if err := r.store.Write(ctx, data); err != nil {
		return fmt.Errorf("save %s to %s: %w", r.name, r.store.Location(), err)
	}
	return nil
}

// Load replaces the in-memory items with the stored snapshot. A missing
// snapshot yields an empty repository and no error. An unreadable one yields
// an empty repository and ErrCorruptSnapshot.
func (r *Repository[T, R]) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[string]T)

	data, err := r.store.Read(ctx)
	if errors.Is(err, interfaces.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		log.Printf("repository %s: cannot read %s: %v", r.name, r.store.Location(), err)
		return fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, r.store.Location(), err)
	}
	if len(data) == 0 {
		return nil
	}

	var records map[string]R
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("repository %s: cannot decode %s: %v", r.name, r.store.Location(), err)
		return fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, r.store.Location(), err)
	}

	items := make(map[string]T, len(records))
	for id, rec := range records {
		item, err := r.codec.Decode(rec)
		if err != nil {
			log.Printf("repository %s: bad record %s in %s: %v", r.name, id, r.store.Location(), err)
			return fmt.Errorf("%w: %s: record %s: %v", ErrCorruptSnapshot, r.store.Location(), id, err)
		}
		items[r.codec.Key(item)] = item
	}
	r.items = items
	return nil
}

// Backup writes the current snapshot to w.
func (r *Repository[T, R]) Backup(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := r.encodeLocked()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (r *Repository[T, R]) encodeLocked() ([]byte, error) {
	records := make(map[string]R, len(r.items))
	for id, item := range r.items {
		records[id] = r.codec.Encode(item)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.name, err)
	}
	return data, nil
}

// persistLocked saves the snapshot. Failures are logged and the in-memory
// state is kept.
func (r *Repository[T, R]) persistLocked(ctx context.Context) {
	data, err := r.encodeLocked()
	if err == nil {
		err = r.store.Write(ctx, data)
	}
	if err != nil {
		log.Printf("repository %s: save to %s failed: %v", r.name, r.store.Location(), err)
	}
}
