package nn

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

func classPlaceholder(i int) string {
	return "class_" + strconv.Itoa(i)
}

// Tally counts detections per class index, over a run of images
type Tally struct {
	Counts map[int]int `json:"counts"`
	Images int         `json:"images"`
}

func NewTally() *Tally {
	return &Tally{
		Counts: map[int]int{},
	}
}

// AddImage records one processed image and its boxes
func (t *Tally) AddImage(boxes []RawBox) {
	t.Images++
	for _, b := range boxes {
		t.Counts[b.Class]++
	}
}

// Classes returns the class indices that have at least one detection, ascending
func (t *Tally) Classes() []int {
	classes := make([]int, 0, len(t.Counts))
	for c, n := range t.Counts {
		if n > 0 {
			classes = append(classes, c)
		}
	}
	sort.Ints(classes)
	return classes
}

// Total returns the number of detections over all classes
func (t *Tally) Total() int {
	total := 0
	for _, n := range t.Counts {
		total += n
	}
	return total
}

// ImageLine formats the per-image line that is printed during a run.
// eg "a.jpg: OxygenTank, NitrogenTank" or "b.jpg: No detections"
func ImageLine(name string, boxes []RawBox, classes ClassNameTable) string {
	if len(boxes) == 0 {
		return name + ": No detections"
	}
	names := make([]string, len(boxes))
	for i, b := range boxes {
		names[i] = classes.NameOrIndex(b.Class)
	}
	return name + ": " + strings.Join(names, ", ")
}

// WriteSummary writes the end-of-run summary
func (t *Tally) WriteSummary(w io.Writer, classes ClassNameTable, elapsed time.Duration, resultsDir string) {
	fmt.Fprintf(w, "\nDetection Summary:\n")
	if t.Total() == 0 {
		fmt.Fprintf(w, "No objects detected in any test image.\n")
	} else {
		for _, c := range t.Classes() {
			fmt.Fprintf(w, " - %-20s: %d detections\n", classes.NameOrIndex(c), t.Counts[c])
		}
	}
	fmt.Fprintf(w, "\nProcessed %d images in %.2fs\n", t.Images, elapsed.Seconds())
	fmt.Fprintf(w, "Results saved in: %v\n", resultsDir)
}
