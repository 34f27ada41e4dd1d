package localsock

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcatd/clipcat/internal/backend/mock"
	"github.com/clipcatd/clipcat/internal/config"
	"github.com/clipcatd/clipcat/internal/manager"
	"github.com/clipcatd/clipcat/internal/rpc"
	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/internal/watcher"
)

func startTestServer(t *testing.T, token string) (*Client, func()) {
	t.Helper()
	be := mock.New()
	mgr := manager.New(be, 10)
	w, err := watcher.New(nil, be, config.WatcherConfig{EnableClipboard: true})
	require.NoError(t, err)
	service := rpc.New(mgr, w)

	socketPath := filepath.Join(t.TempDir(), "clipcatd.sock")
	srv := NewServer(nil, service, socketPath, token, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()

	// Give the listener a moment to bind.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		client := NewClient(socketPath, token)
		if err := client.Call(context.Background(), OpLength, nil, new(int)); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	return NewClient(socketPath, token), func() {
		cancel()
		<-done
	}
}

func TestInsertAndListOverSocket(t *testing.T) {
	client, stop := startTestServer(t, "")
	defer stop()

	var entry types.ClipEntry
	err := client.Call(context.Background(), OpInsert, insertRequest{
		Kind:    types.Clipboard,
		Content: types.Content{Kind: types.ContentText, Text: "over the wire"},
	}, &entry)
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)

	var metas []types.ClipEntryMetadata
	err = client.Call(context.Background(), OpList, listRequest{PreviewLength: 40}, &metas)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, entry.ID, metas[0].ID)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	be := mock.New()
	mgr := manager.New(be, 10)
	w, err := watcher.New(nil, be, config.WatcherConfig{EnableClipboard: true})
	require.NoError(t, err)
	service := rpc.New(mgr, w)

	socketPath := filepath.Join(t.TempDir(), "clipcatd.sock")
	srv := NewServer(nil, service, socketPath, "secret-token", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		client := NewClient(socketPath, "")
		lastErr = client.Call(context.Background(), OpLength, nil, new(int))
		if lastErr != nil && !strings.Contains(lastErr.Error(), "dial") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.ErrorContains(t, lastErr, rpc.ErrUnauthenticated.Error())
}

func TestWrongTokenRejected(t *testing.T) {
	be := mock.New()
	mgr := manager.New(be, 10)
	w, err := watcher.New(nil, be, config.WatcherConfig{EnableClipboard: true})
	require.NoError(t, err)
	service := rpc.New(mgr, w)

	socketPath := filepath.Join(t.TempDir(), "clipcatd.sock")
	srv := NewServer(nil, service, socketPath, "right-token", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		client := &Client{socketPath: socketPath, token: "wrong-token", timeout: time.Second}
		lastErr = client.Call(context.Background(), OpLength, nil, new(int))
		if lastErr != nil && !strings.Contains(lastErr.Error(), "dial") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.ErrorContains(t, lastErr, rpc.ErrUnauthenticated.Error())
}

func TestOversizeRequestReturnsResourceExhausted(t *testing.T) {
	be := mock.New()
	mgr := manager.New(be, 10)
	w, err := watcher.New(nil, be, config.WatcherConfig{EnableClipboard: true})
	require.NoError(t, err)
	service := rpc.New(mgr, w)

	socketPath := filepath.Join(t.TempDir(), "clipcatd.sock")
	srv := NewServer(nil, service, socketPath, "", 32)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	client := NewClient(socketPath, "")
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if err := client.Call(context.Background(), OpLength, nil, new(int)); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	var entry types.ClipEntry
	err = client.Call(context.Background(), OpInsert, insertRequest{
		Kind:    types.Clipboard,
		Content: types.Content{Kind: types.ContentText, Text: strings.Repeat("x", 4096)},
	}, &entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource exhausted")
}

func TestUnknownOpReturnsError(t *testing.T) {
	client, stop := startTestServer(t, "")
	defer stop()

	err := client.Call(context.Background(), "not_a_real_op", nil, nil)
	assert.Error(t, err)
}
