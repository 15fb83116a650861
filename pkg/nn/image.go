package nn

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	// Decoders for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded 8-bit RGB image, row-major, with no padding between rows.
// Treat it as immutable once it has been created.
type Image struct {
	Width  int
	Height int
	NChan  int // Always 3
	Pixels []byte
}

// NewImage wraps existing RGB pixels. The pixels are not copied.
func NewImage(width, height int, pixels []byte) *Image {
	return &Image{
		Width:  width,
		Height: height,
		NChan:  3,
		Pixels: pixels,
	}
}

// Stride returns the number of bytes per row
func (m *Image) Stride() int {
	return m.Width * m.NChan
}

// ColorModel implements image.Image
func (m *Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image
func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	i := y*m.Stride() + x*m.NChan
	return color.RGBA{R: m.Pixels[i], G: m.Pixels[i+1], B: m.Pixels[i+2], A: 255}
}

// FromImage converts any image.Image to RGB
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	width := b.Dx()
	height := b.Dy()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Rect, src, b.Min, draw.Src)
	}
	pixels := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		srcRow := rgba.Pix[y*rgba.Stride : y*rgba.Stride+width*4]
		dstRow := pixels[y*width*3 : (y+1)*width*3]
		for x := 0; x < width; x++ {
			dstRow[x*3] = srcRow[x*4]
			dstRow[x*3+1] = srcRow[x*4+1]
			dstRow[x*3+2] = srcRow[x*4+2]
		}
	}
	return NewImage(width, height, pixels)
}

// DefaultMaxPixels is the largest image (width * height) that DecodeImage accepts
const DefaultMaxPixels = 50 * 1000 * 1000

// DecodeImage decodes a JPEG, PNG, GIF, BMP, TIFF or WebP byte stream into an RGB image,
// with a limit of DefaultMaxPixels.
// Fails with *DecodeError on empty or malformed input.
func DecodeImage(data []byte) (*Image, error) {
	return DecodeImageLimit(data, DefaultMaxPixels)
}

// DecodeImageLimit is DecodeImage with an explicit pixel limit.
// The header is read first, so an oversized image is rejected before any pixels are allocated.
// A maxPixels of zero or less means DefaultMaxPixels.
func DecodeImageLimit(data []byte, maxPixels int) (*Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Message: "Empty image"}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Message: "Failed to decode image", Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Message: "Image has no pixels"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, &DecodeError{Message: fmt.Sprintf("Image is too large (%vx%v, limit is %v pixels)", cfg.Width, cfg.Height, maxPixels)}
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Message: "Failed to decode image", Err: err}
	}
	if src.Bounds().Empty() {
		return nil, &DecodeError{Message: "Image has no pixels"}
	}
	return FromImage(src), nil
}
