package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/backend/mock"
	"github.com/clipcatd/clipcat/internal/types"
)

func mustEntry(t *testing.T, text string, kind backend.ClipboardKind, ts time.Time) types.ClipEntry {
	t.Helper()
	e, err := types.NewClipEntry(types.Content{Kind: types.ContentText, Text: text}, kind, ts)
	require.NoError(t, err)
	return e
}

func TestInsertAndGet(t *testing.T) {
	m := New(mock.New(), 10)
	e := mustEntry(t, "hello", backend.Clipboard, time.Now())
	m.Insert(e)

	got, ok := m.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, e.Content.Text, got.Content.Text)
}

func TestGetCurrentTracksLastInsertPerKind(t *testing.T) {
	m := New(mock.New(), 10)
	now := time.Now()
	a := mustEntry(t, "a", backend.Clipboard, now)
	b := mustEntry(t, "b", backend.Clipboard, now.Add(time.Second))
	m.Insert(a)
	m.Insert(b)

	cur, ok := m.GetCurrent(backend.Clipboard)
	require.True(t, ok)
	assert.Equal(t, b.ID, cur.ID)
}

func TestEvictionRemovesOldestOverCapacity(t *testing.T) {
	m := New(mock.New(), 2)
	now := time.Now()
	a := mustEntry(t, "a", backend.Clipboard, now)
	b := mustEntry(t, "b", backend.Primary, now.Add(time.Second))
	c := mustEntry(t, "c", backend.Secondary, now.Add(2*time.Second))

	m.Insert(a)
	m.Insert(b)
	m.Insert(c)

	assert.Equal(t, 2, m.Length())
	_, ok := m.Get(a.ID)
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = m.Get(c.ID)
	assert.True(t, ok)
}

func TestEvictionTieBreaksBySmallestID(t *testing.T) {
	m := New(mock.New(), 1)
	ts := time.Now()
	a := mustEntry(t, "aaaa", backend.Clipboard, ts)
	b := mustEntry(t, "bbbb", backend.Primary, ts)

	m.Insert(a)
	m.Insert(b)

	var survivor, evicted types.ClipEntry
	if a.ID < b.ID {
		survivor, evicted = b, a
	} else {
		survivor, evicted = a, b
	}
	_ = evicted
	_, ok := m.Get(survivor.ID)
	assert.True(t, ok)
}

func TestRemoveClearsCurrentPointer(t *testing.T) {
	m := New(mock.New(), 10)
	e := mustEntry(t, "x", backend.Clipboard, time.Now())
	m.Insert(e)

	assert.True(t, m.Remove(e.ID))
	_, ok := m.GetCurrent(backend.Clipboard)
	assert.False(t, ok)
}

func TestBatchRemoveReportsOnlyPresent(t *testing.T) {
	m := New(mock.New(), 10)
	e := mustEntry(t, "x", backend.Clipboard, time.Now())
	m.Insert(e)

	removed := m.BatchRemove([]uint64{e.ID, 999})
	assert.Equal(t, []uint64{e.ID}, removed)
}

func TestMarkWritesBackToBackendAndUpdatesTimestamp(t *testing.T) {
	be := mock.New()
	m := New(be, 10)
	e := mustEntry(t, "restore me", backend.Clipboard, time.Now().Add(-time.Hour))
	m.Insert(e)

	before := e.Timestamp
	updated, err := m.Mark(context.Background(), e.ID, backend.Primary, time.Now())
	require.NoError(t, err)
	assert.True(t, updated.Timestamp.After(before))
	assert.Equal(t, backend.Primary, updated.ClipboardKind)

	content, err := be.Load(context.Background(), backend.Primary, "")
	require.NoError(t, err)
	assert.Equal(t, "restore me", content.Text)
}

func TestMarkUnknownIDReturnsErrNotFound(t *testing.T) {
	m := New(mock.New(), 10)
	_, err := m.Mark(context.Background(), 12345, backend.Clipboard, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceContentKeepsOldKind(t *testing.T) {
	m := New(mock.New(), 10)
	e := mustEntry(t, "old", backend.Secondary, time.Now())
	m.Insert(e)

	updated, err := m.ReplaceContent(e.ID, types.Content{Kind: types.ContentText, Text: "new"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, backend.Secondary, updated.ClipboardKind)
	_, ok := m.Get(e.ID)
	assert.False(t, ok)
}

func TestSnapshotReturnsCapacity(t *testing.T) {
	m := New(mock.New(), 7)
	entries, capacity := m.Snapshot()
	assert.Empty(t, entries)
	assert.Equal(t, 7, capacity)
}

func TestListOrdersByTimestampDescending(t *testing.T) {
	m := New(mock.New(), 10)
	now := time.Now()
	older := mustEntry(t, "older", backend.Clipboard, now)
	newer := mustEntry(t, "newer", backend.Clipboard, now.Add(time.Minute))
	m.Insert(older)
	m.Insert(newer)

	metas := m.List(40)
	require.Len(t, metas, 2)
	assert.Equal(t, newer.ID, metas[0].ID)
	assert.Equal(t, older.ID, metas[1].ID)
}
