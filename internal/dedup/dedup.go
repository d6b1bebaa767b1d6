package dedup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
)

// Deduplicator filters out items whose identity was already seen in an
// earlier run. FilterNew and MarkSeen are deliberately separate steps so the
// orchestrator decides when identities become durable.
type Deduplicator struct {
	store ports.SeenStore
}

// New wires a seen store.
func New(store ports.SeenStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// FilterNew returns only the items absent from the seen store, preserving order.
func (d *Deduplicator) FilterNew(ctx context.Context, items []domain.RawItem) ([]domain.RawItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]domain.Identity, len(items))
	for i, item := range items {
		ids[i] = item.Identity()
	}

	seen, err := d.store.Contains(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load seen identities: %w", err)
	}

	fresh := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if !seen[item.Identity()] {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

// MarkSeen records the identities of the given items.
func (d *Deduplicator) MarkSeen(ctx context.Context, items []domain.RawItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]domain.Identity, len(items))
	for i, item := range items {
		ids[i] = item.Identity()
	}

	if err := d.store.Mark(ctx, ids, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// MemoryStore is an in-process seen store used for tests and for runs with
// persistence disabled.
type MemoryStore struct {
	mu        sync.Mutex
	seen      map[domain.Identity]time.Time
	retention time.Duration
	capacity  int
}

var _ ports.SeenStore = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store. Zero retention keeps entries forever;
// zero capacity means unbounded.
func NewMemoryStore(retention time.Duration, capacity int) *MemoryStore {
	return &MemoryStore{
		seen:      map[domain.Identity]time.Time{},
		retention: retention,
		capacity:  capacity,
	}
}

// Contains reports which of the given identities are present.
func (m *MemoryStore) Contains(_ context.Context, ids []domain.Identity) (map[domain.Identity]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune(time.Now())

	result := make(map[domain.Identity]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.seen[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

// Mark inserts the identities, evicting oldest entries past capacity.
func (m *MemoryStore) Mark(_ context.Context, ids []domain.Identity, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		m.seen[id] = at
	}
	m.evict()
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) prune(now time.Time) {
	if m.retention <= 0 {
		return
	}
	cutoff := now.Add(-m.retention)
	for id, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.seen, id)
		}
	}
}

func (m *MemoryStore) evict() {
	if m.capacity <= 0 || len(m.seen) <= m.capacity {
		return
	}

	type entry struct {
		id domain.Identity
		at time.Time
	}
	entries := make([]entry, 0, len(m.seen))
	for id, at := range m.seen {
		entries = append(entries, entry{id, at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	excess := len(m.seen) - m.capacity
	for _, e := range entries[:excess] {
		delete(m.seen, e.id)
	}
}
