//go:build darwin

package backendselect

import (
	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/backend/macos"
)

// Detect returns the NSPasteboard backend; kinds is ignored since macOS
// exposes only the general pasteboard.
func Detect(logger *zap.Logger, kinds []backend.ClipboardKind) (backend.Backend, error) {
	return macos.New(logger)
}
