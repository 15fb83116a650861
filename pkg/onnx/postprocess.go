package onnx

import (
	"fmt"
	"sort"

	"github.com/cyclopcam/detectd/pkg/nn"
)

// OutputLayout identifies the shape of the model's output tensor
type OutputLayout int

const (
	// LayoutRaw is the plain YOLOv8/11 detection head: [1, 4+nc, N], where each of the
	// N anchors has (cx, cy, w, h) followed by one score per class. Needs NMS.
	LayoutRaw OutputLayout = iota
	// LayoutEndToEnd is an export with NMS built in: [1, N, 6], each row (x1, y1, x2, y2, conf, cls).
	LayoutEndToEnd
)

func (l OutputLayout) String() string {
	switch l {
	case LayoutRaw:
		return "raw"
	case LayoutEndToEnd:
		return "end-to-end"
	}
	return "unknown"
}

// DetectLayout figures out the output layout from the output tensor shape and the number of classes
func DetectLayout(shape []int64, nClasses int) (OutputLayout, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return 0, fmt.Errorf("Unsupported output shape %v", shape)
	}
	if shape[2] == 6 && shape[1] != int64(4+nClasses) {
		return LayoutEndToEnd, nil
	}
	if shape[1] < 5 {
		return 0, fmt.Errorf("Unsupported output shape %v", shape)
	}
	return LayoutRaw, nil
}

// Candidate is a detection in model input space, before it is mapped back to the source image
type Candidate struct {
	Box        nn.Rect
	Class      int
	Confidence float32
}

// DecodeRaw reads a [1, 4+nc, nAnchors] head, keeping the best class of each anchor if it
// meets the threshold.
func DecodeRaw(output []float32, nClasses, nAnchors int, threshold float32) []Candidate {
	result := []Candidate{}
	if len(output) < (4+nClasses)*nAnchors {
		return result
	}
	for i := 0; i < nAnchors; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 0; c < nClasses; c++ {
			score := output[(4+c)*nAnchors+i]
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}
		cx := output[i]
		cy := output[nAnchors+i]
		w := output[2*nAnchors+i]
		h := output[3*nAnchors+i]
		result = append(result, Candidate{
			Box:        nn.RectFromCenter(cx, cy, w, h),
			Class:      bestClass,
			Confidence: bestScore,
		})
	}
	return result
}

// DecodeEndToEnd reads a [1, nRows, 6] output, where NMS has already been applied by the model
func DecodeEndToEnd(output []float32, nRows int, threshold float32) []Candidate {
	result := []Candidate{}
	for i := 0; i < nRows && (i+1)*6 <= len(output); i++ {
		row := output[i*6 : i*6+6]
		if row[4] < threshold {
			continue
		}
		result = append(result, Candidate{
			Box:        nn.RectFromCorners(row[0], row[1], row[2], row[3]),
			Class:      int(row[5]),
			Confidence: row[4],
		})
	}
	return result
}

// NMS performs greedy class-aware non-max suppression.
// The result is ordered by descending confidence, which is the order that the trainer's own
// predictor reports boxes in.
func NMS(candidates []Candidate, iouThreshold float32) []Candidate {
	sorted := append([]Candidate{}, candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	suppressed := make([]bool, len(sorted))
	keep := []Candidate{}
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		keep = append(keep, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].Class != sorted[i].Class {
				continue
			}
			if sorted[i].Box.IOU(sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}

// ToRawBoxes maps candidates back to source image pixels
func ToRawBoxes(candidates []Candidate, lb Letterbox) []nn.RawBox {
	boxes := make([]nn.RawBox, 0, len(candidates))
	for _, c := range candidates {
		r := lb.ToSource(c.Box)
		boxes = append(boxes, nn.RawBox{
			X1:         float64(r.X),
			Y1:         float64(r.Y),
			X2:         float64(r.X2()),
			Y2:         float64(r.Y2()),
			Class:      c.Class,
			Confidence: float64(c.Confidence),
		})
	}
	return boxes
}
