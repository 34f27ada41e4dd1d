// Package manager implements the in-memory clipboard manager: the single
// authoritative map from entry id to ClipEntry, the per-kind "current"
// pointer, and capacity-bound eviction by oldest timestamp.
package manager

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/pkg/preview"
)

// ErrNotFound is returned by Mark when the given id has no retained entry.
var ErrNotFound = errors.New("manager: entry not found")

// Manager holds every retained ClipEntry behind a single mutex. All
// operations are atomic with respect to each other; Mark's backend write
// happens after the mutex is released.
type Manager struct {
	backend backend.Backend

	mu       sync.Mutex
	capacity int
	clips    map[uint64]types.ClipEntry
	current  map[backend.ClipboardKind]uint64
}

// New builds an empty Manager bound to capacity and able to write back to
// backend on Mark.
func New(be backend.Backend, capacity int) *Manager {
	return &Manager{
		backend:  be,
		capacity: capacity,
		clips:    make(map[uint64]types.ClipEntry),
		current:  make(map[backend.ClipboardKind]uint64),
	}
}

// Insert overwrites the entry at entry.ID, marks it current for its kind,
// and evicts to capacity.
func (m *Manager) Insert(entry types.ClipEntry) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips[entry.ID] = entry
	m.current[entry.ClipboardKind] = entry.ID
	m.evictToCapacity()
	return entry.ID
}

// Get returns the entry with id, if present.
func (m *Manager) Get(id uint64) (types.ClipEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.clips[id]
	return e, ok
}

// GetCurrent returns the entry currently active for kind, if any.
func (m *Manager) GetCurrent(kind backend.ClipboardKind) (types.ClipEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.current[kind]
	if !ok {
		return types.ClipEntry{}, false
	}
	e, ok := m.clips[id]
	return e, ok
}

// SortedEntries returns every retained entry sorted by timestamp
// descending, ties broken by kind ascending.
func (m *Manager) SortedEntries() []types.ClipEntry {
	m.mu.Lock()
	entries := make([]types.ClipEntry, 0, len(m.clips))
	for _, e := range m.clips {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ClipboardKind < entries[j].ClipboardKind
	})
	return entries
}

// List returns every retained entry as metadata, sorted by timestamp
// descending, ties broken by kind ascending.
func (m *Manager) List(previewLen int) []types.ClipEntryMetadata {
	entries := m.SortedEntries()
	out := make([]types.ClipEntryMetadata, len(entries))
	for i, e := range entries {
		out[i] = metadataOf(e, previewLen)
	}
	return out
}

// Length reports the number of retained entries.
func (m *Manager) Length() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clips)
}

// Remove deletes id, clearing any current pointer to it. Reports whether it
// was present.
func (m *Manager) Remove(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id)
}

func (m *Manager) removeLocked(id uint64) bool {
	if _, ok := m.clips[id]; !ok {
		return false
	}
	delete(m.clips, id)
	for kind, cur := range m.current {
		if cur == id {
			delete(m.current, kind)
		}
	}
	return true
}

// BatchRemove removes every id present and returns those actually removed.
func (m *Manager) BatchRemove(ids []uint64) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if m.removeLocked(id) {
			removed = append(removed, id)
		}
	}
	return removed
}

// Clear empties the manager entirely.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips = make(map[uint64]types.ClipEntry)
	m.current = make(map[backend.ClipboardKind]uint64)
}

// ReplaceContent computes a new entry from content with the same kind as
// oldID (or Primary if oldID is unknown), removes oldID, and inserts the
// new entry. Used by the RPC "update" operation.
func (m *Manager) ReplaceContent(oldID uint64, content types.Content, timestamp time.Time) (types.ClipEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kind := backend.Primary
	if old, ok := m.clips[oldID]; ok {
		kind = old.ClipboardKind
	}

	entry, err := types.NewClipEntry(content, kind, timestamp)
	if err != nil {
		return types.ClipEntry{}, err
	}

	m.removeLocked(oldID)
	m.clips[entry.ID] = entry
	m.current[entry.ClipboardKind] = entry.ID
	m.evictToCapacity()
	return entry, nil
}

// Mark sets clips[id]'s timestamp to now and its kind to kind, then writes
// the entry's content back to the backend. The backend write is awaited;
// a failure is returned to the caller and the in-memory timestamp update is
// still kept (the entry was genuinely re-surfaced).
func (m *Manager) Mark(ctx context.Context, id uint64, kind backend.ClipboardKind, timestamp time.Time) (types.ClipEntry, error) {
	m.mu.Lock()
	entry, ok := m.clips[id]
	if !ok {
		m.mu.Unlock()
		return types.ClipEntry{}, ErrNotFound
	}
	updated := entry
	updated.Timestamp = timestamp
	updated.ClipboardKind = kind
	m.clips[id] = updated
	m.current[kind] = id
	m.mu.Unlock()

	if err := m.backend.Store(ctx, kind, updated.Content); err != nil {
		return updated, err
	}
	return updated, nil
}

// Import replaces the mapping wholesale (used on startup) and evicts to
// capacity.
func (m *Manager) Import(entries []types.ClipEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clips = make(map[uint64]types.ClipEntry, len(entries))
	m.current = make(map[backend.ClipboardKind]uint64)
	for _, e := range entries {
		m.clips[e.ID] = e
		if cur, ok := m.current[e.ClipboardKind]; !ok || e.Timestamp.After(m.clips[cur].Timestamp) {
			m.current[e.ClipboardKind] = e.ID
		}
	}
	m.evictToCapacity()
}

// Snapshot returns every retained entry (unordered) and the configured
// capacity, for use by the shutdown save path.
func (m *Manager) Snapshot() ([]types.ClipEntry, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ClipEntry, 0, len(m.clips))
	for _, e := range m.clips {
		out = append(out, e)
	}
	return out, m.capacity
}

// evictToCapacity removes the oldest entry, tie-broken by smallest id,
// until |clips| <= capacity. Must be called with m.mu held.
func (m *Manager) evictToCapacity() {
	for len(m.clips) > m.capacity {
		var oldestID uint64
		var oldest types.ClipEntry
		first := true
		for id, e := range m.clips {
			if first {
				oldestID, oldest, first = id, e, false
				continue
			}
			if e.Timestamp.Before(oldest.Timestamp) || (e.Timestamp.Equal(oldest.Timestamp) && id < oldestID) {
				oldestID, oldest = id, e
			}
		}
		if first {
			return
		}
		m.removeLocked(oldestID)
	}
}

func metadataOf(e types.ClipEntry, previewLen int) types.ClipEntryMetadata {
	return types.ClipEntryMetadata{
		ID:            e.ID,
		ClipboardKind: e.ClipboardKind,
		Timestamp:     e.Timestamp,
		MimeEssence:   e.Content.MimeEssence(),
		PreviewString: preview.Build(e, previewLen),
	}
}
