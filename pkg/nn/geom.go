package nn

import (
	"github.com/chewxy/math32"
)

// Rect is a box in model input space (the letterboxed square), where float32 is enough
type Rect struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// RectFromCenter builds a Rect from the center/size form that YOLO heads emit
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		X:      cx - w/2,
		Y:      cy - h/2,
		Width:  w,
		Height: h,
	}
}

// RectFromCorners builds a Rect from its top-left and bottom-right corners
func RectFromCorners(x1, y1, x2, y2 float32) Rect {
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

func (r Rect) X2() float32 {
	return r.X + r.Width
}

func (r Rect) Y2() float32 {
	return r.Y + r.Height
}

func (r Rect) Area() float32 {
	return r.Width * r.Height
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := math32.Max(r.X, b.X)
	y1 := math32.Max(r.Y, b.Y)
	x2 := math32.Min(r.X2(), b.X2())
	y2 := math32.Min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  math32.Max(0, x2-x1),
		Height: math32.Max(0, y2-y1),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	inter := r.Intersection(b).Area()
	union := r.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clamp limits the rect to [0,0,width,height]
func (r Rect) Clamp(width, height float32) Rect {
	x1 := math32.Min(math32.Max(r.X, 0), width)
	y1 := math32.Min(math32.Max(r.Y, 0), height)
	x2 := math32.Min(math32.Max(r.X2(), 0), width)
	y2 := math32.Min(math32.Max(r.Y2(), 0), height)
	return RectFromCorners(x1, y1, x2, y2)
}
