//go:build linux

// Package backendselect picks the concrete backend.Backend implementation
// for the running platform and session, one file per GOOS.
package backendselect

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/backend/wayland"
	"github.com/clipcatd/clipcat/internal/backend/x11"
)

// Detect picks a clipboard transport for the running session: Wayland when
// WAYLAND_DISPLAY is set, X11 when DISPLAY is set, and an error otherwise
// (the caller falls back to the mock backend for headless runs).
func Detect(logger *zap.Logger, kinds []backend.ClipboardKind) (backend.Backend, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return wayland.New(logger)
	}
	if os.Getenv("DISPLAY") != "" {
		return x11.New(logger, os.Getenv("DISPLAY"), kinds)
	}
	return nil, fmt.Errorf("backendselect: neither WAYLAND_DISPLAY nor DISPLAY is set")
}
