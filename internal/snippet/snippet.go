// Package snippet implements the optional snippet source: a file/directory
// watcher that turns files dropped into configured directories into
// synthetic clipboard entries, as if they had been pasted.
package snippet

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/config"
	"github.com/clipcatd/clipcat/internal/types"
)

// maxSnippetSize bounds how large a dropped file clipcat will read into a
// synthetic entry; larger files are ignored rather than surfaced partially.
const maxSnippetSize = 1 << 20

// Event is a clipboard entry synthesized from a snippet file.
type Event struct {
	Entry types.ClipEntry
}

// Source watches a configured set of directories for new or modified files
// and turns each into an Event.
type Source struct {
	logger       *zap.Logger
	directories  []string
	pollInterval time.Duration
}

// New builds a Source from snippet configuration. It is a no-op (Run
// returns immediately with a closed channel) if cfg.Enabled is false or no
// directories are configured.
func New(logger *zap.Logger, cfg config.SnippetConfig) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	directories := cfg.Directories
	if !cfg.Enabled {
		directories = nil
	}
	return &Source{logger: logger, directories: directories, pollInterval: cfg.PollInterval}
}

// Run watches every configured directory with fsnotify and emits one Event
// per newly written file. It recovers from a watcher being destroyed out
// from under it (directory removed then recreated) by re-adding every
// directory's watch once per ten poll intervals.
func (s *Source) Run(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event, 32)
	if len(s.directories) == 0 {
		close(out)
		return out, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		close(out)
		return out, err
	}
	for _, dir := range s.directories {
		if err := watcher.Add(dir); err != nil {
			s.logger.Warn("snippet: failed to watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	interval := s.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	go func() {
		defer close(out)
		defer watcher.Close()

		rewatch := time.NewTicker(interval * 10)
		defer rewatch.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.emitFile(ctx, ev.Name, out)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("snippet: watcher error", zap.Error(err))
			case <-rewatch.C:
				for _, dir := range s.directories {
					_ = watcher.Add(dir)
				}
			}
		}
	}()

	return out, nil
}

func (s *Source) emitFile(ctx context.Context, path string, out chan<- Event) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 || info.Size() > maxSnippetSize {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("snippet: failed to read file", zap.String("path", path), zap.Error(err))
		return
	}

	content := contentFor(path, data)
	entry, err := types.NewClipEntry(content, backend.Clipboard, time.Unix(0, 0).UTC())
	if err != nil {
		s.logger.Error("snippet: fingerprint entry", zap.Error(err))
		return
	}

	select {
	case out <- Event{Entry: entry}:
	case <-ctx.Done():
	default:
		s.logger.Warn("snippet: output channel full, dropping entry")
	}
}

func contentFor(path string, data []byte) types.Content {
	switch filepath.Ext(path) {
	case ".png":
		if img, err := types.DecodePNG(data); err == nil {
			return types.Content{Kind: types.ContentImage, Image: img}
		}
	}
	return types.Content{Kind: types.ContentText, Text: string(data)}
}
