package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcatd/clipcat/internal/backend/mock"
	"github.com/clipcatd/clipcat/internal/config"
	"github.com/clipcatd/clipcat/internal/manager"
	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/internal/watcher"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	be := mock.New()
	mgr := manager.New(be, 10)
	w, err := watcher.New(nil, be, config.WatcherConfig{EnableClipboard: true})
	require.NoError(t, err)
	return New(mgr, w)
}

func TestInsertGetRoundTrip(t *testing.T) {
	s := newTestService(t)
	entry, err := s.Insert(types.Clipboard, types.Content{Kind: types.ContentText, Text: "hi"})
	require.NoError(t, err)

	got, err := s.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content.Text)
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	s := newTestService(t)
	_, err := s.Get(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkUnknownIDMapsToErrNotFound(t *testing.T) {
	s := newTestService(t)
	_, err := s.Mark(context.Background(), 999, types.Clipboard)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReturnsPreview(t *testing.T) {
	s := newTestService(t)
	_, err := s.Insert(types.Clipboard, types.Content{Kind: types.ContentText, Text: "preview me"})
	require.NoError(t, err)

	metas := s.List(5)
	require.Len(t, metas, 1)
	assert.LessOrEqual(t, len(metas[0].PreviewString), 5)
}

func TestWatcherEnableDisableToggle(t *testing.T) {
	s := newTestService(t)
	s.WatcherDisable()
	assert.Equal(t, types.Disabled, s.WatcherState())
	s.WatcherEnable()
	assert.Equal(t, types.Enabled, s.WatcherState())
	assert.Equal(t, types.Disabled, s.WatcherToggle())
}

func TestGetVersion(t *testing.T) {
	s := newTestService(t)
	v := s.GetVersion()
	assert.Equal(t, VersionMajor, v.Major)
}
