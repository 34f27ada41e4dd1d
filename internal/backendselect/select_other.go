//go:build !linux && !darwin

package backendselect

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/clipcatd/clipcat/internal/backend"
)

// Detect has no native transport on this platform; callers fall back to
// the mock backend.
func Detect(logger *zap.Logger, kinds []backend.ClipboardKind) (backend.Backend, error) {
	return nil, fmt.Errorf("backendselect: no native clipboard transport on this platform")
}
