package annotate

// Package annotate draws detections onto images, for the annotated output of a directory run

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// JPEGQuality of annotated images
const JPEGQuality = 90

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Palette is cycled through by class index
var Palette = []color.RGBA{
	{255, 56, 56, 255},
	{255, 157, 151, 255},
	{255, 112, 31, 255},
	{255, 178, 29, 255},
	{207, 210, 49, 255},
	{72, 249, 10, 255},
	{146, 204, 23, 255},
	{61, 219, 134, 255},
	{26, 147, 52, 255},
	{0, 212, 187, 255},
	{44, 153, 168, 255},
	{0, 194, 255, 255},
	{52, 69, 147, 255},
	{100, 115, 255, 255},
	{0, 24, 236, 255},
	{132, 56, 255, 255},
	{82, 0, 133, 255},
	{203, 56, 255, 255},
	{255, 149, 200, 255},
	{255, 55, 199, 255},
}

// ClassColor returns the box color for a class
func ClassColor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return Palette[class%len(Palette)]
}

// Label returns the text drawn above a box, eg "person 0.87"
func Label(box nn.RawBox, classes nn.ClassNameTable) string {
	return fmt.Sprintf("%v %.2f", classes.NameOrIndex(box.Class), box.Confidence)
}

// Draw returns a copy of img with the boxes and their labels drawn on top
func Draw(img image.Image, boxes []nn.RawBox, classes nn.ClassNameTable) image.Image {
	dc := gg.NewContextForImage(img)
	w := float64(dc.Width())
	h := float64(dc.Height())
	lineWidth := max(2, (w+h)/600)
	fontSize := max(10, lineWidth*5)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: fontSize}))

	for _, b := range boxes {
		c := ClassColor(b.Class)
		dc.SetColor(c)
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(b.X1, b.Y1, b.X2-b.X1, b.Y2-b.Y1)
		dc.Stroke()

		text := Label(b, classes)
		tw, th := dc.MeasureString(text)
		pad := lineWidth
		ty := b.Y1 - th - 2*pad
		if ty < 0 {
			ty = b.Y1
		}
		dc.DrawRectangle(b.X1, ty, tw+2*pad, th+2*pad)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawStringAnchored(text, b.X1+pad, ty+pad, 0, 1)
	}
	return dc.Image()
}

// WriteJPEG draws the boxes onto img, and encodes the result as a JPEG
func WriteJPEG(w io.Writer, img image.Image, boxes []nn.RawBox, classes nn.ClassNameTable) error {
	return jpeg.Encode(w, Draw(img, boxes, classes), &jpeg.Options{Quality: JPEGQuality})
}
