//go:build linux

// Package wayland implements the Clipboard Backend contract by shelling out
// to wl-clipboard's wl-copy/wl-paste. Marshaling the wlr-data-control
// protocol directly means hand-rolling proxy listeners and callback
// marshaling for a compositor extension that isn't universally present;
// the external binary is the same tradeoff wl-clipboard's own maintainers
// settled on.
package wayland

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/pkg/fingerprint"
)

const pollInterval = 250 * time.Millisecond

type Backend struct {
	logger   *zap.Logger
	fatalErr error
	kinds    []backend.ClipboardKind
}

// New probes that wl-copy and wl-paste are on PATH, and separately probes
// whether the running compositor supports the primary selection at all —
// not every Wayland compositor does, and wl-copy/wl-paste fail outright on
// one that doesn't, so Primary is only advertised when the probe succeeds.
func New(logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := exec.LookPath("wl-copy"); err != nil {
		return nil, fmt.Errorf("wayland: wl-copy not found: %w", err)
	}
	if _, err := exec.LookPath("wl-paste"); err != nil {
		return nil, fmt.Errorf("wayland: wl-paste not found: %w", err)
	}

	kinds := []backend.ClipboardKind{backend.Clipboard}
	if probePrimarySupported() {
		kinds = append(kinds, backend.Primary)
	}
	return &Backend{logger: logger, kinds: kinds}, nil
}

// probePrimarySupported clears the primary selection to tell whether the
// compositor implements it at all: wl-copy exits non-zero immediately when
// the backend has no primary selection support, and succeeds otherwise. Any
// value the primary selection held before the probe is cleared.
func probePrimarySupported() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "wl-copy", "--primary", "--clear").Run() == nil
}

func (b *Backend) supports(kind backend.ClipboardKind) bool {
	for _, k := range b.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func primaryFlag(kind backend.ClipboardKind) []string {
	if kind == backend.Primary {
		return []string{"--primary"}
	}
	return nil
}

func (b *Backend) Load(ctx context.Context, kind backend.ClipboardKind, mime string) (types.Content, error) {
	if !b.supports(kind) {
		return types.Content{}, backend.ErrUnsupportedKind
	}

	args := primaryFlag(kind)
	if mime != "" {
		args = append(args, "--type", mime)
	}
	args = append(args, "--no-newline")

	out, err := exec.CommandContext(ctx, "wl-paste", args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) == 0 {
			return types.Content{}, backend.ErrEmpty
		}
		return types.Content{}, fmt.Errorf("wayland: wl-paste: %w", err)
	}
	if len(out) == 0 {
		return types.Content{}, backend.ErrEmpty
	}

	if mime == "image/png" {
		img, derr := types.DecodePNG(out)
		if derr != nil {
			return types.Content{}, fmt.Errorf("wayland: decode png payload: %w", derr)
		}
		return types.Content{Kind: types.ContentImage, Image: img}, nil
	}
	return types.Content{Kind: types.ContentText, Text: string(out)}, nil
}

func (b *Backend) Store(ctx context.Context, kind backend.ClipboardKind, content types.Content) error {
	if !b.supports(kind) {
		return backend.ErrUnsupportedKind
	}

	payload, err := content.NormalisedEncoding()
	if err != nil {
		return err
	}

	args := primaryFlag(kind)
	if content.Kind == types.ContentImage {
		args = append(args, "--type", "image/png")
	}

	cmd := exec.CommandContext(ctx, "wl-copy", args...)
	cmd.Stdin = bytes.NewReader(payload)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wayland: wl-copy: %w", err)
	}
	return nil
}

func (b *Backend) Clear(ctx context.Context, kind backend.ClipboardKind) error {
	if !b.supports(kind) {
		return backend.ErrUnsupportedKind
	}
	args := append(primaryFlag(kind), "--clear")
	if err := exec.CommandContext(ctx, "wl-copy", args...).Run(); err != nil {
		return fmt.Errorf("wayland: wl-copy --clear: %w", err)
	}
	return nil
}

// Subscribe polls wl-paste --watch's equivalent by diffing digests of both
// selections on a ticker, since wl-clipboard's --watch mode invokes an
// arbitrary command per change rather than delivering structured events to
// a Go caller.
func (b *Backend) Subscribe(ctx context.Context) (<-chan backend.ChangeEvent, error) {
	out := make(chan backend.ChangeEvent, 16)

	go func() {
		defer close(out)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		last := make(map[backend.ClipboardKind]uint64, 2)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, kind := range b.kinds {
					content, err := b.Load(ctx, kind, "")
					var digest uint64
					if err == nil {
						if normalised, nerr := content.NormalisedEncoding(); nerr == nil {
							digest = fingerprint.ID(normalised)
						}
					}
					if seen, ok := last[kind]; ok && seen == digest && err == nil {
						continue
					}
					last[kind] = digest
					if err != nil {
						continue
					}
					select {
					case out <- backend.ChangeEvent{Kind: kind, Mime: content.MimeEssence()}:
					case <-ctx.Done():
						return
					}
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
	return append([]backend.ClipboardKind(nil), b.kinds...)
}
