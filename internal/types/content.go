package types

// ContentKind discriminates the tagged union a ClipEntry's Content holds.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentImage
)

// Content is the immutable captured value of a ClipEntry: either plain UTF-8
// text or a decoded RGBA image. Exactly one of the Text/Image fields is
// meaningful, selected by Kind.
type Content struct {
	Kind ContentKind

	// Text holds the UTF-8 text when Kind == ContentText.
	Text string

	// Image holds the decoded raster when Kind == ContentImage.
	Image ImageData
}

// ImageData is a decoded RGBA raster plus its dimensions.
type ImageData struct {
	Width  int
	Height int
	RGBA8  []byte // len == Width*Height*4, row-major, non-premultiplied RGBA
}

// Equal reports whether two Content values represent the same captured
// value. ClipEntry equality and hashing are defined solely in terms of this.
func (c Content) Equal(o Content) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ContentText:
		return c.Text == o.Text
	case ContentImage:
		return c.Image.Width == o.Image.Width &&
			c.Image.Height == o.Image.Height &&
			bytesEqual(c.Image.RGBA8, o.Image.RGBA8)
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MimeEssence returns the MIME type of the content, ignoring parameters.
func (c Content) MimeEssence() string {
	switch c.Kind {
	case ContentImage:
		return "image/png"
	default:
		return "text/plain"
	}
}

// Size returns the byte size of the content's raw payload: UTF-8 byte count
// for text, RGBA byte count for images. Used in the synthesized preview of
// non-text entries.
func (c Content) Size() int {
	switch c.Kind {
	case ContentImage:
		return len(c.Image.RGBA8)
	default:
		return len(c.Text)
	}
}
