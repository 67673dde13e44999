// Package memory provides a mutex-guarded in-memory Table implementation.
// It backs the package's own tests and is good enough for small
// single-process deployments; anything needing durability should use a real
// backend such as store/bunstore.
package memory

import (
	"context"
	"maps"
	"sync"

	aaa "github.com/goliatone/go-aaa"
)

var _ aaa.Table[struct{}] = &Table[struct{}]{}

// Table is an in-memory keyed collection. Pop holds the write lock for the
// whole read-and-delete, so concurrent pops of the same key cannot both
// succeed.
type Table[R any] struct {
	mu      sync.RWMutex
	records map[string]R
}

// NewTable returns an empty table.
func NewTable[R any]() *Table[R] {
	return &Table[R]{records: make(map[string]R)}
}

func (t *Table[R]) Contains(ctx context.Context, key string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.records[key]
	return ok, nil
}

func (t *Table[R]) Get(ctx context.Context, key string) (R, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.records[key]
	if !ok {
		var zero R
		return zero, aaa.ErrNoSuchKey
	}
	return record, nil
}

func (t *Table[R]) Set(ctx context.Context, key string, record R) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[key] = record
	return nil
}

func (t *Table[R]) Delete(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[key]; !ok {
		return aaa.ErrNoSuchKey
	}
	delete(t.records, key)
	return nil
}

func (t *Table[R]) Pop(ctx context.Context, key string) (R, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[key]
	if !ok {
		var zero R
		return zero, aaa.ErrNoSuchKey
	}
	delete(t.records, key)
	return record, nil
}

func (t *Table[R]) All(ctx context.Context) (map[string]R, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.records), nil
}

// NewStore bundles three fresh tables into a ready-to-use store.
func NewStore() *aaa.Store {
	return &aaa.Store{
		Users:   NewTable[aaa.User](),
		Roles:   NewTable[aaa.Role](),
		Pending: NewTable[aaa.PendingRegistration](),
	}
}
