//go:build darwin

// Package macos implements the Clipboard Backend contract over NSPasteboard
// using purego's Objective-C runtime bridge instead of cgo: generalPasteboard
// for access, dataForType:/setData:forType: for reads and writes, and
// changeCount polling in place of a push notification API.
package macos

import (
	"context"
	"runtime"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"
	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/types"
)

// macOS's NSPasteboard has no notion of PRIMARY/SECONDARY selections; only
// Clipboard is supported.
var supportedKinds = []backend.ClipboardKind{backend.Clipboard}

const pollInterval = 250 * time.Millisecond

type Backend struct {
	logger *zap.Logger

	pasteboardClass objc.Class
	dataClass       objc.Class

	selGeneralPasteboard objc.SEL
	selDataForType       objc.SEL
	selClearContents     objc.SEL
	selSetDataForType    objc.SEL
	selChangeCount       objc.SEL
	selDataWithBytes     objc.SEL
	selBytes             objc.SEL
	selLength            objc.SEL

	typeString objc.ID
	typePNG    objc.ID

	fatalErr error
}

// New loads AppKit and resolves the NSPasteboard selectors this backend
// needs. It must run on darwin; callers select it via build-tag routing in
// the platform factory.
func New(logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{logger: logger}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	appkit, err := purego.Dlopen("/System/Library/Frameworks/AppKit.framework/AppKit", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}

	b.pasteboardClass = objc.GetClass("NSPasteboard")
	b.dataClass = objc.GetClass("NSData")

	b.selGeneralPasteboard = objc.RegisterName("generalPasteboard")
	b.selDataForType = objc.RegisterName("dataForType:")
	b.selClearContents = objc.RegisterName("clearContents")
	b.selSetDataForType = objc.RegisterName("setData:forType:")
	b.selChangeCount = objc.RegisterName("changeCount")
	b.selDataWithBytes = objc.RegisterName("dataWithBytes:length:")
	b.selBytes = objc.RegisterName("bytes")
	b.selLength = objc.RegisterName("length")

	typeStringPtr, err := purego.Dlsym(appkit, "NSPasteboardTypeString")
	if err != nil {
		return nil, err
	}
	typePNGPtr, err := purego.Dlsym(appkit, "NSPasteboardTypePNG")
	if err != nil {
		return nil, err
	}
	b.typeString = objc.ID(*(*uintptr)(unsafe.Pointer(typeStringPtr)))
	b.typePNG = objc.ID(*(*uintptr)(unsafe.Pointer(typePNGPtr)))

	return b, nil
}

func (b *Backend) pasteboard() objc.ID {
	return objc.ID(b.pasteboardClass).Send(b.selGeneralPasteboard)
}

func (b *Backend) changeCount() int64 {
	return objc.Send[int64](b.pasteboard(), b.selChangeCount)
}

func (b *Backend) Load(_ context.Context, kind backend.ClipboardKind, mime string) (types.Content, error) {
	if kind != backend.Clipboard {
		return types.Content{}, backend.ErrUnsupportedKind
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pb := b.pasteboard()
	if pb == 0 {
		return types.Content{}, backend.ErrEmpty
	}

	wantImage := mime == "image/png"
	pbType := b.typeString
	if wantImage {
		pbType = b.typePNG
	}

	data := pb.Send(b.selDataForType, pbType)
	if data == 0 {
		if wantImage {
			return types.Content{}, backend.ErrEmpty
		}
		// fall back to probing the other representation when mime was unset
		data = pb.Send(b.selDataForType, b.typePNG)
		if data == 0 {
			return types.Content{}, backend.ErrEmpty
		}
		wantImage = true
	}

	length := objc.Send[uint64](data, b.selLength)
	if length == 0 {
		return types.Content{}, backend.ErrEmpty
	}
	srcPtr := data.Send(b.selBytes)
	if srcPtr == 0 {
		return types.Content{}, backend.ErrEmpty
	}
	raw := make([]byte, length)
	copy(raw, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(srcPtr))), int(length)))

	if wantImage {
		img, err := types.DecodePNG(raw)
		if err != nil {
			return types.Content{}, err
		}
		return types.Content{Kind: types.ContentImage, Image: img}, nil
	}
	return types.Content{Kind: types.ContentText, Text: string(raw)}, nil
}

func (b *Backend) Store(_ context.Context, kind backend.ClipboardKind, content types.Content) error {
	if kind != backend.Clipboard {
		return backend.ErrUnsupportedKind
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pb := b.pasteboard()
	if pb == 0 {
		return backend.ErrEmpty
	}
	pb.Send(b.selClearContents)

	payload, err := content.NormalisedEncoding()
	if err != nil {
		return err
	}

	var nsData objc.ID
	if len(payload) > 0 {
		nsData = objc.ID(b.dataClass).Send(b.selDataWithBytes, unsafe.Pointer(&payload[0]), uint64(len(payload)))
	} else {
		nsData = objc.ID(b.dataClass).Send(b.selDataWithBytes, unsafe.Pointer(nil), uint64(0))
	}
	if nsData == 0 {
		return backend.ErrEmpty
	}

	pbType := b.typeString
	if content.Kind == types.ContentImage {
		pbType = b.typePNG
	}
	if ok := objc.Send[bool](pb, b.selSetDataForType, nsData, pbType); !ok {
		return backend.ErrEmpty
	}
	return nil
}

func (b *Backend) Clear(ctx context.Context, kind backend.ClipboardKind) error {
	if kind != backend.Clipboard {
		return backend.ErrUnsupportedKind
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	b.pasteboard().Send(b.selClearContents)
	return nil
}

// Subscribe polls changeCount on a dedicated ticker, since NSPasteboard
// exposes no push notification for selection changes.
func (b *Backend) Subscribe(ctx context.Context) (<-chan backend.ChangeEvent, error) {
	out := make(chan backend.ChangeEvent, 16)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(out)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		last := b.changeCount()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current := b.changeCount()
				if current == last {
					continue
				}
				last = current
				select {
				case out <- backend.ChangeEvent{Kind: backend.Clipboard}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *Backend) Err() error {
	return b.fatalErr
}

func (b *Backend) SupportedKinds() []backend.ClipboardKind {
	return append([]backend.ClipboardKind(nil), supportedKinds...)
}
