package onnx

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/nfnt/resize"
)

// PadValue is the gray level of the letterbox border, matching the trainer's own letterbox
const PadValue = 114

// Letterbox describes how a source image is fitted into the square model input:
// scaled uniformly to fit, then centered, with the remainder padded.
type Letterbox struct {
	SrcWidth  int
	SrcHeight int
	DstWidth  int
	DstHeight int
	Scale     float32 // dst pixels per src pixel
	NewWidth  int     // Size of the scaled image inside dst
	NewHeight int
	PadX      int // Left border
	PadY      int // Top border
}

func NewLetterbox(srcWidth, srcHeight, dstWidth, dstHeight int) Letterbox {
	scale := math32.Min(float32(dstWidth)/float32(srcWidth), float32(dstHeight)/float32(srcHeight))
	newWidth := int(math32.Round(float32(srcWidth) * scale))
	newHeight := int(math32.Round(float32(srcHeight) * scale))
	newWidth = max(1, min(newWidth, dstWidth))
	newHeight = max(1, min(newHeight, dstHeight))
	return Letterbox{
		SrcWidth:  srcWidth,
		SrcHeight: srcHeight,
		DstWidth:  dstWidth,
		DstHeight: dstHeight,
		Scale:     scale,
		NewWidth:  newWidth,
		NewHeight: newHeight,
		PadX:      (dstWidth - newWidth) / 2,
		PadY:      (dstHeight - newHeight) / 2,
	}
}

// ToSource maps a rect in model input space back to source image pixels, clamped to the source image
func (l Letterbox) ToSource(r nn.Rect) nn.Rect {
	x1 := (r.X - float32(l.PadX)) / l.Scale
	y1 := (r.Y - float32(l.PadY)) / l.Scale
	x2 := (r.X2() - float32(l.PadX)) / l.Scale
	y2 := (r.Y2() - float32(l.PadY)) / l.Scale
	return nn.RectFromCorners(x1, y1, x2, y2).Clamp(float32(l.SrcWidth), float32(l.SrcHeight))
}

// FillTensor letterboxes img into dst, which is a planar NCHW float32 tensor of
// shape [1, 3, DstHeight, DstWidth], with values scaled to [0,1].
func (l Letterbox) FillTensor(img *nn.Image, dst []float32) error {
	planeSize := l.DstWidth * l.DstHeight
	if len(dst) < planeSize*3 {
		return fmt.Errorf("Input tensor holds %v floats, but needs %v", len(dst), planeSize*3)
	}
	red := dst[0:planeSize]
	green := dst[planeSize : planeSize*2]
	blue := dst[planeSize*2 : planeSize*3]

	pad := float32(PadValue) / 255
	for i := 0; i < planeSize*3; i++ {
		dst[i] = pad
	}

	var scaled *nn.Image
	if l.NewWidth == img.Width && l.NewHeight == img.Height {
		scaled = img
	} else {
		scaled = nn.FromImage(resize.Resize(uint(l.NewWidth), uint(l.NewHeight), img, resize.Bilinear))
	}

	stride := scaled.Stride()
	for y := 0; y < l.NewHeight; y++ {
		src := scaled.Pixels[y*stride : y*stride+l.NewWidth*3]
		out := (y+l.PadY)*l.DstWidth + l.PadX
		for x := 0; x < l.NewWidth; x++ {
			red[out+x] = float32(src[x*3]) / 255
			green[out+x] = float32(src[x*3+1]) / 255
			blue[out+x] = float32(src[x*3+2]) / 255
		}
	}
	return nil
}
