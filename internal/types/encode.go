package types

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// NormalisedEncoding returns the canonical byte encoding used to compute a
// ClipEntry's id and digest: raw UTF-8 bytes for text, PNG-encoded RGBA for
// images.
func (c Content) NormalisedEncoding() ([]byte, error) {
	switch c.Kind {
	case ContentText:
		return []byte(c.Text), nil
	case ContentImage:
		return EncodePNG(c.Image)
	default:
		return nil, fmt.Errorf("types: unknown content kind %d", c.Kind)
	}
}

// EncodePNG renders an ImageData as a canonical PNG (the form persisted to
// sidecars and hashed for the content digest).
func EncodePNG(img ImageData) ([]byte, error) {
	rgba := &image.NRGBA{
		Pix:    img.RGBA8,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("types: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG parses a PNG byte stream back into an ImageData, normalising the
// result to non-premultiplied RGBA8 regardless of the source color model.
func DecodePNG(data []byte) (ImageData, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageData{}, fmt.Errorf("types: decode png: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return ImageData{Width: w, Height: h, RGBA8: rgba.Pix}, nil
}
