// Package mock provides an in-memory Backend for deterministic tests,
// letting watcher and manager tests inject clipboard changes without a
// real display or pasteboard.
package mock

import (
	"context"
	"sync"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/types"
)

// Backend is an in-memory clipboard backend safe for concurrent use.
type Backend struct {
	mu      sync.Mutex
	values  map[backend.ClipboardKind]types.Content
	subs    []chan backend.ChangeEvent
	kinds   []backend.ClipboardKind
	fatal   error
}

// New returns a Backend supporting the given kinds (defaults to all three).
func New(kinds ...backend.ClipboardKind) *Backend {
	if len(kinds) == 0 {
		kinds = []backend.ClipboardKind{backend.Clipboard, backend.Primary, backend.Secondary}
	}
	return &Backend{
		values: make(map[backend.ClipboardKind]types.Content),
		kinds:  kinds,
	}
}

func (b *Backend) supports(kind backend.ClipboardKind) bool {
	for _, k := range b.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (b *Backend) Load(_ context.Context, kind backend.ClipboardKind, _ string) (types.Content, error) {
	if !b.supports(kind) {
		return types.Content{}, backend.ErrUnsupportedKind
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.values[kind]
	if !ok {
		return types.Content{}, backend.ErrEmpty
	}
	return content, nil
}

func (b *Backend) Store(_ context.Context, kind backend.ClipboardKind, content types.Content) error {
	if !b.supports(kind) {
		return backend.ErrUnsupportedKind
	}
	b.setAndNotify(kind, content, nil)
	return nil
}

func (b *Backend) Clear(_ context.Context, kind backend.ClipboardKind) error {
	if !b.supports(kind) {
		return backend.ErrUnsupportedKind
	}
	b.mu.Lock()
	delete(b.values, kind)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Subscribe(ctx context.Context) (<-chan backend.ChangeEvent, error) {
	ch := make(chan backend.ChangeEvent, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, c := range b.subs {
			if c == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (b *Backend) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fatal
}

func (b *Backend) SupportedKinds() []backend.ClipboardKind {
	return append([]backend.ClipboardKind(nil), b.kinds...)
}

// Inject simulates an external application changing the selection: it sets
// the stored value and emits a change event, without going through Store
// (which the manager's Mark uses). Tests use this to drive the watcher.
func (b *Backend) Inject(kind backend.ClipboardKind, content types.Content, sensitiveAtoms ...string) {
	b.setAndNotify(kind, content, sensitiveAtoms)
}

func (b *Backend) setAndNotify(kind backend.ClipboardKind, content types.Content, sensitiveAtoms []string) {
	b.mu.Lock()
	b.values[kind] = content
	subs := append([]chan backend.ChangeEvent(nil), b.subs...)
	b.mu.Unlock()

	evt := backend.ChangeEvent{Kind: kind, Mime: content.MimeEssence(), SensitiveAtoms: sensitiveAtoms}
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
