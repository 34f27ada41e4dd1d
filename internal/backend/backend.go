// Package backend defines the Clipboard Backend contract: uniform
// load/store/clear/subscribe operations over one or more OS clipboard
// selections (clipboard, primary, secondary), satisfied by a different
// implementation per platform.
package backend

import (
	"context"
	"errors"

	"github.com/clipcatd/clipcat/internal/types"
)

// Sentinel errors for the backend-transient error category.
var (
	ErrEmpty           = errors.New("backend: clipboard is empty")
	ErrUnsupportedKind = errors.New("backend: clipboard kind not supported on this platform")
	ErrUnknownMime     = errors.New("backend: mime type not recognised")
)

// ChangeEvent is the (kind, mime) notification pushed by a backend's
// listener thread whenever a selection's owner changes.
type ChangeEvent struct {
	Kind ClipboardKind
	Mime string
	// SensitiveAtoms carries any opaque markers the platform attached to
	// this change (e.g. password-manager traffic markers), consulted by
	// the content filter.
	SensitiveAtoms []string
}

// ClipboardKind re-exports types.ClipboardKind so backend implementations
// need only import this package.
type ClipboardKind = types.ClipboardKind

const (
	Clipboard = types.Clipboard
	Primary   = types.Primary
	Secondary = types.Secondary
)

// Backend is the uniform contract every platform clipboard implementation
// satisfies.
type Backend interface {
	// Load fetches the current content of kind. mime optionally narrows the
	// requested representation; an empty string requests the backend's
	// preferred representation. Returns ErrEmpty when the selection holds no
	// data and ErrUnsupportedKind when kind isn't supported on this platform.
	Load(ctx context.Context, kind ClipboardKind, mime string) (types.Content, error)

	// Store publishes content as the current value of kind, taking and
	// holding selection ownership for as long as other clients may request
	// it.
	Store(ctx context.Context, kind ClipboardKind, content types.Content) error

	// Clear relinquishes ownership of kind, leaving it empty.
	Clear(ctx context.Context, kind ClipboardKind) error

	// Subscribe returns a channel of change notifications that remains open
	// until ctx is cancelled or the backend hits a fatal transport error (in
	// which case the channel is closed and Err returns that error).
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)

	// Err returns the fatal error that closed the most recent Subscribe
	// channel, or nil if it closed only because ctx was cancelled.
	Err() error

	// SupportedKinds reports which ClipboardKinds this backend can load,
	// store, and subscribe to on the current platform.
	SupportedKinds() []ClipboardKind
}
