package nn

import "fmt"

// RawBox is an object that a neural network has found in an image, in absolute pixel coordinates.
// X1 <= X2 and Y1 <= Y2.
type RawBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Class      int     `json:"class"`
	Confidence float64 `json:"confidence"`
}

// DetectionRecord is the normalized form of a RawBox, which is what we send to clients.
// Box is [x, y, width, height], each a fraction of the image width or height.
type DetectionRecord struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// Denormalize reconstructs the absolute corners of the box, for an image of the given size.
// The class index is not recoverable from the record, so it is left as zero.
func (d DetectionRecord) Denormalize(width, height int) RawBox {
	w := float64(width)
	h := float64(height)
	return RawBox{
		X1:         d.Box[0] * w,
		Y1:         d.Box[1] * h,
		X2:         (d.Box[0] + d.Box[2]) * w,
		Y2:         (d.Box[1] + d.Box[3]) * h,
		Confidence: d.Confidence,
	}
}

// YOLOLine formats the box as one line of a YOLO label file: "class cx cy w h conf",
// with center and size normalized to the image dimensions.
func (b RawBox) YOLOLine(width, height int) string {
	w := float64(width)
	h := float64(height)
	cx := (b.X1 + b.X2) / 2 / w
	cy := (b.Y1 + b.Y2) / 2 / h
	bw := (b.X2 - b.X1) / w
	bh := (b.Y2 - b.Y1) / h
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f %.6f", b.Class, cx, cy, bw, bh, b.Confidence)
}

// ImageLabels holds the raw detections of one image in a directory run
type ImageLabels struct {
	Filename string   `json:"filename"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Objects  []RawBox `json:"objects"`
}
