//go:build linux

// Package x11 implements the Clipboard Backend contract over a real X11
// protocol connection, using github.com/BurntSushi/xgb and its xfixes
// extension for selection-owner change notification. It connects once,
// creates a hidden window, and subscribes to XFIXES selection-owner events
// for CLIPBOARD, PRIMARY, and SECONDARY, rather than shelling out to a
// helper binary for each read and write.
package x11

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/types"
)

var selectionAtomNames = map[backend.ClipboardKind]string{
	backend.Clipboard: "CLIPBOARD",
	backend.Primary:   "PRIMARY",
	backend.Secondary: "SECONDARY",
}

// Backend is the X11 clipboard backend. A single instance owns one X
// connection and one hidden window shared by Load/Store/Subscribe.
type Backend struct {
	logger *zap.Logger
	kinds  []backend.ClipboardKind

	mu        sync.Mutex
	conn      *xgb.Conn
	window    xproto.Window
	selection map[backend.ClipboardKind]xproto.Atom
	utf8Atom  xproto.Atom
	pngAtom   xproto.Atom
	targets   xproto.Atom

	fatalErr error
}

// New connects to the X server named by the DISPLAY environment variable (or
// displayName if non-empty) and prepares the hidden window and atom cache.
func New(logger *zap.Logger, displayName string, kinds []backend.ClipboardKind) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{logger: logger, kinds: kinds}
	if err := b.connect(displayName); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) connect(displayName string) error {
	var conn *xgb.Conn
	var err error
	if displayName != "" {
		conn, err = xgb.NewConnDisplay(displayName)
	} else {
		conn, err = xgb.NewConn()
	}
	if err != nil {
		return fmt.Errorf("x11: connect: %w", err)
	}

	if err := xfixes.Init(conn); err != nil {
		conn.Close()
		return fmt.Errorf("x11: init xfixes extension: %w", err)
	}
	if _, err := xfixes.QueryVersion(conn, 5, 0).Reply(); err != nil {
		conn.Close()
		return fmt.Errorf("x11: xfixes query version: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	windowID, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("x11: allocate window id: %w", err)
	}
	err = xproto.CreateWindowChecked(
		conn, screen.RootDepth, windowID, screen.Root,
		0, 0, 1, 1, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		0, nil,
	).Check()
	if err != nil {
		conn.Close()
		return fmt.Errorf("x11: create hidden window: %w", err)
	}

	atoms := make(map[backend.ClipboardKind]xproto.Atom, len(b.kinds))
	for _, kind := range b.kinds {
		name := selectionAtomNames[kind]
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return fmt.Errorf("x11: intern atom %s: %w", name, err)
		}
		atoms[kind] = reply.Atom

		const fixesMask = xfixes.SelectionEventMaskSetSelectionOwner |
			xfixes.SelectionEventMaskSelectionWindowDestroy |
			xfixes.SelectionEventMaskSelectionClientClose
		if err := xfixes.SelectSelectionInputChecked(conn, windowID, reply.Atom, fixesMask).Check(); err != nil {
			conn.Close()
			return fmt.Errorf("x11: select selection input for %s: %w", name, err)
		}
	}

	utf8Reply, err := xproto.InternAtom(conn, false, uint16(len("UTF8_STRING")), "UTF8_STRING").Reply()
	if err != nil {
		conn.Close()
		return fmt.Errorf("x11: intern UTF8_STRING: %w", err)
	}
	pngReply, err := xproto.InternAtom(conn, false, uint16(len("image/png")), "image/png").Reply()
	if err != nil {
		conn.Close()
		return fmt.Errorf("x11: intern image/png: %w", err)
	}
	targetsReply, err := xproto.InternAtom(conn, false, uint16(len("TARGETS")), "TARGETS").Reply()
	if err != nil {
		conn.Close()
		return fmt.Errorf("x11: intern TARGETS: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.window = windowID
	b.selection = atoms
	b.utf8Atom = utf8Reply.Atom
	b.pngAtom = pngReply.Atom
	b.targets = targetsReply.Atom
	b.fatalErr = nil
	b.mu.Unlock()

	return nil
}

// reconnect rebuilds the connection, window, and atom cache after a
// transport loss.
func (b *Backend) reconnect(displayName string) error {
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.mu.Unlock()
	return b.connect(displayName)
}

func (b *Backend) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fatalErr
}

func (b *Backend) SupportedKinds() []backend.ClipboardKind {
	return append([]backend.ClipboardKind(nil), b.kinds...)
}

func (b *Backend) atomFor(kind backend.ClipboardKind) (xproto.Atom, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.selection[kind]
	return a, ok
}

func (b *Backend) targetAtomFor(mime string) xproto.Atom {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mime == "image/png" {
		return b.pngAtom
	}
	return b.utf8Atom
}

// Load requests the selection's content and waits, bounded by ctx, for the
// owner's SelectionNotify reply.
func (b *Backend) Load(ctx context.Context, kind backend.ClipboardKind, mime string) (types.Content, error) {
	sel, ok := b.atomFor(kind)
	if !ok {
		return types.Content{}, backend.ErrUnsupportedKind
	}

	b.mu.Lock()
	conn, window := b.conn, b.window
	b.mu.Unlock()

	target := b.targetAtomFor(mime)
	propReply, err := xproto.InternAtom(conn, false, uint16(len("CLIPCAT_TRANSFER")), "CLIPCAT_TRANSFER").Reply()
	if err != nil {
		return types.Content{}, fmt.Errorf("x11: intern transfer atom: %w", err)
	}
	prop := propReply.Atom

	if err := xproto.ConvertSelectionChecked(conn, window, sel, target, prop, xproto.TimeCurrentTime).Check(); err != nil {
		return types.Content{}, fmt.Errorf("x11: convert selection: %w", err)
	}

	data, err := waitForSelectionNotify(ctx, conn, window, prop)
	if err != nil {
		return types.Content{}, err
	}
	if data == nil {
		return types.Content{}, backend.ErrEmpty
	}

	if target == b.pngAtom {
		img, err := types.DecodePNG(data)
		if err != nil {
			return types.Content{}, fmt.Errorf("x11: decode png payload: %w", err)
		}
		return types.Content{Kind: types.ContentImage, Image: img}, nil
	}
	return types.Content{Kind: types.ContentText, Text: string(data)}, nil
}

func waitForSelectionNotify(ctx context.Context, conn *xgb.Conn, window xproto.Window, prop xproto.Atom) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		for {
			ev, err := conn.WaitForEvent()
			if err != nil {
				done <- result{err: fmt.Errorf("x11: wait for event: %w", err)}
				return
			}
			notify, ok := ev.(xproto.SelectionNotifyEvent)
			if !ok || notify.Requestor != window {
				continue
			}
			if notify.Property == 0 {
				done <- result{data: nil}
				return
			}
			reply, err := xproto.GetProperty(conn, true, window, notify.Property, xproto.GetPropertyTypeAny, 0, ^uint32(0)).Reply()
			if err != nil {
				done <- result{err: fmt.Errorf("x11: get property: %w", err)}
				return
			}
			done <- result{data: append([]byte(nil), reply.Value...)}
			return
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

// Store takes ownership of kind and answers SelectionRequest events for it
// on a dedicated goroutine until another client takes ownership
// (SelectionClear).
func (b *Backend) Store(ctx context.Context, kind backend.ClipboardKind, content types.Content) error {
	sel, ok := b.atomFor(kind)
	if !ok {
		return backend.ErrUnsupportedKind
	}

	b.mu.Lock()
	conn, window, utf8Atom, pngAtom, targetsAtom := b.conn, b.window, b.utf8Atom, b.pngAtom, b.targets
	b.mu.Unlock()

	payload, err := content.NormalisedEncoding()
	if err != nil {
		return err
	}
	var contentAtom xproto.Atom
	if content.Kind == types.ContentImage {
		contentAtom = pngAtom
	} else {
		contentAtom = utf8Atom
	}

	if err := xproto.SetSelectionOwnerChecked(conn, window, sel, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("x11: set selection owner: %w", err)
	}

	go serveSelectionRequests(ctx, conn, window, sel, contentAtom, targetsAtom, payload)
	return nil
}

func serveSelectionRequests(ctx context.Context, conn *xgb.Conn, window xproto.Window, sel, contentAtom, targetsAtom xproto.Atom, payload []byte) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := conn.WaitForEvent()
		if err != nil {
			return
		}
		switch e := ev.(type) {
		case xproto.SelectionClearEvent:
			if e.Selection == sel {
				return
			}
		case xproto.SelectionRequestEvent:
			if e.Selection != sel {
				continue
			}
			notify := xproto.SelectionNotifyEvent{
				Time:      e.Time,
				Requestor: e.Requestor,
				Selection: e.Selection,
				Target:    e.Target,
				Property:  e.Property,
			}
			switch e.Target {
			case targetsAtom:
				_ = xproto.ChangePropertyChecked(conn, xproto.PropModeReplace, e.Requestor, e.Property,
					xproto.AtomAtom, 32, 1, typesToBytes([]xproto.Atom{contentAtom})).Check()
			case contentAtom:
				_ = xproto.ChangePropertyChecked(conn, xproto.PropModeReplace, e.Requestor, e.Property,
					contentAtom, 8, uint32(len(payload)), payload).Check()
			default:
				notify.Property = 0
			}
			_ = xproto.SendEventChecked(conn, false, e.Requestor, xproto.EventMaskNoEvent, string(notify.Bytes())).Check()
		}
	}
}

func typesToBytes(atoms []xproto.Atom) []byte {
	buf := make([]byte, 4*len(atoms))
	for i, a := range atoms {
		buf[i*4] = byte(a)
		buf[i*4+1] = byte(a >> 8)
		buf[i*4+2] = byte(a >> 16)
		buf[i*4+3] = byte(a >> 24)
	}
	return buf
}

func (b *Backend) Clear(ctx context.Context, kind backend.ClipboardKind) error {
	sel, ok := b.atomFor(kind)
	if !ok {
		return backend.ErrUnsupportedKind
	}
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if err := xproto.SetSelectionOwnerChecked(conn, 0, sel, xproto.TimeCurrentTime).Check(); err != nil {
		return fmt.Errorf("x11: clear selection: %w", err)
	}
	return nil
}

// Subscribe runs the XFIXES event-read loop on a dedicated, locked OS
// thread, since the blocking XNextEvent-equivalent read must not starve the
// Go scheduler, pushing change notifications onto a channel buffered to 64
// events; when the buffer is full the listener blocks until the consumer
// reads or ctx is cancelled.
func (b *Backend) Subscribe(ctx context.Context) (<-chan backend.ChangeEvent, error) {
	out := make(chan backend.ChangeEvent, 64)

	b.mu.Lock()
	conn := b.conn
	atomToKind := make(map[xproto.Atom]backend.ClipboardKind, len(b.selection))
	for kind, atom := range b.selection {
		atomToKind[atom] = kind
	}
	b.mu.Unlock()

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(out)

		for {
			if ctx.Err() != nil {
				return
			}
			ev, err := conn.WaitForEvent()
			if err != nil {
				b.mu.Lock()
				b.fatalErr = fmt.Errorf("x11: listener transport lost: %w", err)
				b.mu.Unlock()
				b.logger.Error("x11 listener transport lost", zap.Error(err))
				return
			}
			notify, ok := ev.(xfixes.SelectionNotifyEvent)
			if !ok {
				continue
			}
			kind, known := atomToKind[notify.Selection]
			if !known {
				continue
			}
			select {
			case out <- backend.ChangeEvent{Kind: kind, Mime: ""}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
