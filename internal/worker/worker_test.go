package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/backend/mock"
	"github.com/clipcatd/clipcat/internal/history"
	"github.com/clipcatd/clipcat/internal/manager"
	"github.com/clipcatd/clipcat/internal/snippet"
	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/internal/watcher"
)

func openTestHistory(t *testing.T) *history.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := history.Open(nil, filepath.Join(dir, "h.db"), filepath.Join(dir, "images"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkerIngestsWatcherEventsIntoManagerAndHistory(t *testing.T) {
	mgr := manager.New(mock.New(), 10)
	hist := openTestHistory(t)
	w := New(nil, mgr, hist)

	watcherEvents := make(chan watcher.Event, 1)
	snippetEvents := make(chan snippet.Event)

	entry, err := types.NewClipEntry(types.Content{Kind: types.ContentText, Text: "ingested"}, backend.Clipboard, time.Now())
	require.NoError(t, err)
	watcherEvents <- watcher.Event{Entry: entry}
	close(watcherEvents)
	close(snippetEvents)

	err = w.Run(context.Background(), watcherEvents, snippetEvents)
	require.NoError(t, err)

	got, ok := mgr.Get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, "ingested", got.Content.Text)

	loaded, err := hist.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, entry.ID, loaded[0].ID)
}

func TestWorkerSavesAndShrinksOnShutdown(t *testing.T) {
	mgr := manager.New(mock.New(), 1)
	hist := openTestHistory(t)
	w := New(nil, mgr, hist)

	ctx, cancel := context.WithCancel(context.Background())
	watcherEvents := make(chan watcher.Event)
	snippetEvents := make(chan snippet.Event)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, watcherEvents, snippetEvents) }()

	e1, _ := types.NewClipEntry(types.Content{Kind: types.ContentText, Text: "one"}, backend.Clipboard, time.Now())
	e2, _ := types.NewClipEntry(types.Content{Kind: types.ContentText, Text: "two"}, backend.Clipboard, time.Now().Add(time.Second))
	watcherEvents <- watcher.Event{Entry: e1}
	watcherEvents <- watcher.Event{Entry: e2}

	// allow ingestion to happen before cancelling
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancellation")
	}

	loaded, err := hist.Load()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(loaded), 1)
}
