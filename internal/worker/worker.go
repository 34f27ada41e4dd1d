// Package worker implements the glue task that drains the watcher's (and,
// when enabled, the snippet source's) entry stream into the manager and
// the history store, and performs the save-and-shrink at shutdown.
package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/history"
	"github.com/clipcatd/clipcat/internal/manager"
	"github.com/clipcatd/clipcat/internal/snippet"
	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/internal/watcher"
)

// Worker owns no state of its own beyond the dependencies it wires
// together; Run is the whole of its behaviour.
type Worker struct {
	logger  *zap.Logger
	manager *manager.Manager
	history *history.Store
}

// New builds a Worker over mgr and hist.
func New(logger *zap.Logger, mgr *manager.Manager, hist *history.Store) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{logger: logger, manager: mgr, history: hist}
}

// Run seeds the manager from history, then consumes watcherEvents and
// snippetEvents until both channels close (ctx cancellation or upstream
// failure), inserting every emitted entry into the manager and persisting
// it to history. On return it performs the save-and-shrink shutdown
// sequence: snapshot the manager and rewrite history to match its capacity.
func (w *Worker) Run(ctx context.Context, watcherEvents <-chan watcher.Event, snippetEvents <-chan snippet.Event) error {
	if err := w.seedFromHistory(); err != nil {
		w.logger.Error("worker: failed to load history, starting empty", zap.Error(err))
	}

	for watcherEvents != nil || snippetEvents != nil {
		select {
		case <-ctx.Done():
			return w.shutdownSave()
		case ev, ok := <-watcherEvents:
			if !ok {
				watcherEvents = nil
				continue
			}
			w.ingest(ev.Entry)
		case ev, ok := <-snippetEvents:
			if !ok {
				snippetEvents = nil
				continue
			}
			w.ingest(ev.Entry)
		}
	}

	return w.shutdownSave()
}

func (w *Worker) seedFromHistory() error {
	entries, err := w.history.Load()
	if err != nil {
		return err
	}
	w.manager.Import(entries)
	return nil
}

func (w *Worker) ingest(entry types.ClipEntry) {
	w.manager.Insert(entry)
	if err := w.history.Put(entry); err != nil {
		w.logger.Error("worker: failed to persist entry, keeping in-memory copy",
			zap.Uint64("id", entry.ID), zap.Error(err))
	}
}

func (w *Worker) shutdownSave() error {
	entries, capacity := w.manager.Snapshot()
	if err := w.history.SaveAndShrinkTo(entries, capacity); err != nil {
		w.logger.Error("worker: failed to save history at shutdown", zap.Error(err))
		return nil
	}
	return nil
}
