package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClipEntryDerivesIDAndDigest(t *testing.T) {
	e, err := NewClipEntry(Content{Kind: ContentText, Text: "hello"}, Clipboard, time.Now())
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Len(t, e.Sha256Digest, 64)
}

func TestNewClipEntrySameContentSameID(t *testing.T) {
	a, err := NewClipEntry(Content{Kind: ContentText, Text: "same"}, Clipboard, time.Now())
	require.NoError(t, err)
	b, err := NewClipEntry(Content{Kind: ContentText, Text: "same"}, Primary, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestContentEqualText(t *testing.T) {
	a := Content{Kind: ContentText, Text: "x"}
	b := Content{Kind: ContentText, Text: "x"}
	c := Content{Kind: ContentText, Text: "y"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestContentEqualImage(t *testing.T) {
	a := Content{Kind: ContentImage, Image: ImageData{Width: 1, Height: 1, RGBA8: []byte{1, 2, 3, 4}}}
	b := Content{Kind: ContentImage, Image: ImageData{Width: 1, Height: 1, RGBA8: []byte{1, 2, 3, 4}}}
	c := Content{Kind: ContentImage, Image: ImageData{Width: 1, Height: 1, RGBA8: []byte{1, 2, 3, 5}}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestMimeEssence(t *testing.T) {
	assert.Equal(t, "text/plain", Content{Kind: ContentText}.MimeEssence())
	assert.Equal(t, "image/png", Content{Kind: ContentImage}.MimeEssence())
}

func TestClipboardKindString(t *testing.T) {
	assert.Equal(t, "Clipboard", Clipboard.String())
	assert.Equal(t, "Primary", Primary.String())
	assert.Equal(t, "Secondary", Secondary.String())
}

func TestWatcherStateString(t *testing.T) {
	assert.Equal(t, "Enabled", Enabled.String())
	assert.Equal(t, "Disabled", Disabled.String())
}

func TestPNGRoundTrip(t *testing.T) {
	img := ImageData{Width: 3, Height: 2, RGBA8: []byte{
		255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255,
		0, 0, 0, 255, 255, 255, 255, 255, 128, 128, 128, 255,
	}}
	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := DecodePNG(data)
	require.NoError(t, err)
	assert.Equal(t, img.Width, decoded.Width)
	assert.Equal(t, img.Height, decoded.Height)
	assert.Equal(t, img.RGBA8, decoded.RGBA8)
}
