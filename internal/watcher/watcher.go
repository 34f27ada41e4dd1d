// Package watcher turns a raw stream of backend change events into a stream
// of admitted, deduplicated clipboard entries, owning the mark-back race
// mitigation between a just-stored entry and the backend echoing it back as
// a fresh external change.
package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/config"
	"github.com/clipcatd/clipcat/internal/filter"
	"github.com/clipcatd/clipcat/internal/types"
)

// Event is a clipboard entry the watcher has decided is worth keeping.
type Event struct {
	Entry types.ClipEntry
}

// Watcher owns one Backend, one Filter, and the per-kind "last observed"
// state used to suppress both duplicate external changes and a backend's
// own echo of content the manager just stored into it.
type Watcher struct {
	logger  *zap.Logger
	backend backend.Backend
	filter  *filter.Filter
	kinds   []backend.ClipboardKind

	mu   sync.Mutex
	last map[backend.ClipboardKind]types.Content

	enabled atomic.Bool
}

// New builds a Watcher over the given backend and watcher configuration.
func New(logger *zap.Logger, be backend.Backend, cfg config.WatcherConfig) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := filter.New(cfg)
	if err != nil {
		return nil, err
	}

	var kinds []backend.ClipboardKind
	if cfg.EnableClipboard {
		kinds = append(kinds, backend.Clipboard)
	}
	if cfg.EnablePrimary {
		kinds = append(kinds, backend.Primary)
	}
	if cfg.EnableSecondary {
		kinds = append(kinds, backend.Secondary)
	}

	supported := make(map[backend.ClipboardKind]struct{})
	for _, k := range be.SupportedKinds() {
		supported[k] = struct{}{}
	}
	var active []backend.ClipboardKind
	for _, k := range kinds {
		if _, ok := supported[k]; ok {
			active = append(active, k)
		}
	}

	w := &Watcher{
		logger:  logger,
		backend: be,
		filter:  f,
		kinds:   active,
		last:    make(map[backend.ClipboardKind]types.Content),
	}
	w.enabled.Store(true)
	return w, nil
}

// Enable resumes processing of incoming change events.
func (w *Watcher) Enable() { w.enabled.Store(true) }

// Disable pauses processing: incoming change events are discarded until
// re-enabled.
func (w *Watcher) Disable() { w.enabled.Store(false) }

// Toggle flips the run/pause state and returns the new state.
func (w *Watcher) Toggle() types.WatcherState {
	for {
		old := w.enabled.Load()
		if w.enabled.CompareAndSwap(old, !old) {
			return stateOf(!old)
		}
	}
}

// State reports the current run/pause state.
func (w *Watcher) State() types.WatcherState {
	return stateOf(w.enabled.Load())
}

func stateOf(enabled bool) types.WatcherState {
	if enabled {
		return types.Enabled
	}
	return types.Disabled
}

// MarkStored records content as the watcher's own write to kind, so the
// backend's echo of that same content is treated as already seen rather than
// as a fresh external change.
func (w *Watcher) MarkStored(kind backend.ClipboardKind, content types.Content) {
	w.mu.Lock()
	w.last[kind] = content
	w.mu.Unlock()
}

// Run loads the current value of every active kind if loadCurrent is set,
// then subscribes to the backend and emits admitted, non-duplicate content
// changes on the returned channel until ctx is cancelled or the backend
// fails. The channel is closed on return.
func (w *Watcher) Run(ctx context.Context, loadCurrent bool) (<-chan Event, error) {
	out := make(chan Event, 64)

	changes, err := w.backend.Subscribe(ctx)
	if err != nil {
		close(out)
		return out, err
	}

	go func() {
		defer close(out)

		if loadCurrent {
			for _, kind := range w.kinds {
				w.loadAndEmit(ctx, kind, out)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-changes:
				if !ok {
					if err := w.backend.Err(); err != nil {
						w.logger.Error("backend subscription ended", zap.Error(err))
					}
					return
				}
				w.handleChange(ctx, ev, out)
			}
		}
	}()

	return out, nil
}

func (w *Watcher) loadAndEmit(ctx context.Context, kind backend.ClipboardKind, out chan<- Event) {
	content, err := w.backend.Load(ctx, kind, "")
	if err != nil {
		return
	}
	w.admitAndEmit(kind, content, nil, out)
}

func (w *Watcher) handleChange(ctx context.Context, ev backend.ChangeEvent, out chan<- Event) {
	if !w.enabled.Load() {
		return
	}
	supported := false
	for _, k := range w.kinds {
		if k == ev.Kind {
			supported = true
			break
		}
	}
	if !supported {
		return
	}

	content, err := w.backend.Load(ctx, ev.Kind, ev.Mime)
	if err != nil {
		w.logger.Debug("load after change event failed", zap.Error(err), zap.Stringer("kind", ev.Kind))
		return
	}
	w.admitAndEmit(ev.Kind, content, ev.SensitiveAtoms, out)
}

func (w *Watcher) admitAndEmit(kind backend.ClipboardKind, content types.Content, sensitiveAtoms []string, out chan<- Event) {
	if !w.filter.Admit(content, sensitiveAtoms) {
		return
	}

	w.mu.Lock()
	prev, seen := w.last[kind]
	if seen && prev.Equal(content) {
		w.mu.Unlock()
		return
	}
	w.last[kind] = content
	w.mu.Unlock()

	entry, err := types.NewClipEntry(content, kind, time.Now())
	if err != nil {
		w.logger.Error("fingerprint clip entry", zap.Error(err))
		return
	}

	select {
	case out <- Event{Entry: entry}:
	default:
		w.logger.Warn("watcher output channel full, dropping entry")
	}
}
