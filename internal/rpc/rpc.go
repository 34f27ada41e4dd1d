// Package rpc defines the transport-agnostic clipcat service surface:
// typed request/response pairs for the Manager, Watcher, and System
// operations, independent of whether they travel over the Unix-socket
// transport or the D-Bus surface.
package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/manager"
	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/internal/watcher"
)

// Error categories every transport maps onto its own wire representation.
var (
	ErrInvalidArgument   = errors.New("rpc: invalid argument")
	ErrUnauthenticated   = errors.New("rpc: unauthenticated")
	ErrNotFound          = errors.New("rpc: not found")
	ErrResourceExhausted = errors.New("rpc: resource exhausted: request exceeds the configured max_decoded_message_size; raise rpc.max_decoded_message_size in the config file to allow larger requests")
)

const (
	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
)

// Version is the System.get_version response.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Service implements every RPC operation on top of a Manager and a Watcher.
// One Service instance is shared by every transport a daemon enables.
type Service struct {
	manager  *manager.Manager
	watcher  *watcher.Watcher
	previews *previewCache
}

// New builds a Service bound to mgr and w.
func New(mgr *manager.Manager, w *watcher.Watcher) *Service {
	return &Service{manager: mgr, watcher: w, previews: newPreviewCache(1024)}
}

// Insert stores a client-submitted clipboard value (distinct from a
// watcher-observed one: timestamp is assigned here).
func (s *Service) Insert(kind types.ClipboardKind, content types.Content) (types.ClipEntry, error) {
	entry, err := types.NewClipEntry(content, kind, time.Now())
	if err != nil {
		return types.ClipEntry{}, errors.Join(ErrInvalidArgument, err)
	}
	s.manager.Insert(entry)
	return entry, nil
}

func (s *Service) Get(id uint64) (types.ClipEntry, error) {
	e, ok := s.manager.Get(id)
	if !ok {
		return types.ClipEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *Service) GetCurrentClip(kind types.ClipboardKind) (types.ClipEntry, error) {
	e, ok := s.manager.GetCurrent(kind)
	if !ok {
		return types.ClipEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *Service) Update(oldID uint64, content types.Content) (types.ClipEntry, error) {
	return s.manager.ReplaceContent(oldID, content, time.Now())
}

func (s *Service) Mark(ctx context.Context, id uint64, kind types.ClipboardKind) (types.ClipEntry, error) {
	entry, err := s.manager.Mark(ctx, id, kind, time.Now())
	if err != nil && errors.Is(err, manager.ErrNotFound) {
		return entry, ErrNotFound
	}
	if err == nil {
		s.watcher.MarkStored(backend.ClipboardKind(kind), entry.Content)
	}
	return entry, err
}

func (s *Service) Remove(id uint64) bool {
	return s.manager.Remove(id)
}

func (s *Service) BatchRemove(ids []uint64) []uint64 {
	return s.manager.BatchRemove(ids)
}

func (s *Service) Clear() {
	s.manager.Clear()
}

func (s *Service) Length() int {
	return s.manager.Length()
}

func (s *Service) List(previewLen int) []types.ClipEntryMetadata {
	entries := s.manager.SortedEntries()
	out := make([]types.ClipEntryMetadata, len(entries))
	for i, e := range entries {
		out[i] = types.ClipEntryMetadata{
			ID:            e.ID,
			ClipboardKind: e.ClipboardKind,
			Timestamp:     e.Timestamp,
			MimeEssence:   e.Content.MimeEssence(),
			PreviewString: s.previews.build(e, previewLen),
		}
	}
	return out
}

func (s *Service) WatcherEnable()  { s.watcher.Enable() }
func (s *Service) WatcherDisable() { s.watcher.Disable() }

func (s *Service) WatcherToggle() types.WatcherState {
	return s.watcher.Toggle()
}

func (s *Service) WatcherState() types.WatcherState {
	return s.watcher.State()
}

func (s *Service) GetVersion() Version {
	return Version{Major: VersionMajor, Minor: VersionMinor, Patch: VersionPatch}
}
