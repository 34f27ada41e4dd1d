package preview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipcatd/clipcat/internal/backend"
	"github.com/clipcatd/clipcat/internal/types"
)

func textEntry(t *testing.T, text string) types.ClipEntry {
	t.Helper()
	e, err := types.NewClipEntry(types.Content{Kind: types.ContentText, Text: text}, backend.Clipboard, time.Now())
	require.NoError(t, err)
	return e
}

func TestBuildShortTextUntouched(t *testing.T) {
	e := textEntry(t, "short")
	assert.Equal(t, "short", Build(e, 80))
}

func TestBuildTruncatesLongText(t *testing.T) {
	e := textEntry(t, "this is a rather long single line of clipboard text")
	preview := Build(e, 10)
	assert.LessOrEqual(t, len([]rune(preview)), 13) // at most 10 runes, "..." included
	assert.Contains(t, preview, "...")
}

func TestBuildAnnotatesMultilineText(t *testing.T) {
	e := textEntry(t, "line one\nline two\nline three")
	preview := Build(e, 40)
	assert.Contains(t, preview, "lines)")
}

func TestBuildEscapesControlCharacters(t *testing.T) {
	e := textEntry(t, "tab\there")
	preview := Build(e, 80)
	assert.Contains(t, preview, `\t`)
}

func TestBuildImagePreview(t *testing.T) {
	img := types.ImageData{Width: 4, Height: 4, RGBA8: make([]byte, 4*4*4)}
	e, err := types.NewClipEntry(types.Content{Kind: types.ContentImage, Image: img}, backend.Clipboard, time.Now())
	require.NoError(t, err)

	preview := Build(e, 80)
	assert.Contains(t, preview, "image/png")
}
