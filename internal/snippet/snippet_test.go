package snippet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcatd/clipcat/internal/config"
)

func TestRunWithNoDirectoriesClosesImmediately(t *testing.T) {
	s := New(nil, config.SnippetConfig{})
	events, err := s.Run(context.Background())
	require.NoError(t, err)

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected channel to be closed")
	}
}

func TestDroppedFileProducesEvent(t *testing.T) {
	dir := t.TempDir()
	s := New(nil, config.SnippetConfig{Enabled: true, Directories: []string{dir}, PollInterval: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Run(ctx)
	require.NoError(t, err)

	path := filepath.Join(dir, "dropped.txt")
	require.NoError(t, os.WriteFile(path, []byte("dropped content"), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, "dropped content", ev.Entry.Content.Text)
		assert.True(t, ev.Entry.Timestamp.Equal(time.Unix(0, 0).UTC()), "snippet entries must sort last via the epoch timestamp")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snippet event")
	}
}

func TestOversizedFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	s := New(nil, config.SnippetConfig{Enabled: true, Directories: []string{dir}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Run(ctx)
	require.NoError(t, err)

	big := make([]byte, maxSnippetSize+1)
	path := filepath.Join(dir, "huge.bin")
	require.NoError(t, os.WriteFile(path, big, 0o644))

	select {
	case ev := <-events:
		t.Fatalf("expected oversized file to be ignored, got %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}
