package nn

// ClassNameTable maps a class index to its name
type ClassNameTable []string

// Name returns the class name for index i, or UnknownClassError
func (t ClassNameTable) Name(i int) (string, error) {
	if i < 0 || i >= len(t) {
		return "", &UnknownClassError{Class: i, NClasses: len(t)}
	}
	return t[i], nil
}

// NameOrIndex returns the class name for index i, or "class_<i>" if i is not in the table
func (t ClassNameTable) NameOrIndex(i int) string {
	if name, err := t.Name(i); err == nil {
		return name
	}
	return classPlaceholder(i)
}

// Normalize converts a box in absolute pixels into fractions of the image width and height.
// Values are not clamped, so a box that extends outside the image produces fractions outside [0,1].
func Normalize(box RawBox, width, height int, classes ClassNameTable) (DetectionRecord, error) {
	if width <= 0 || height <= 0 {
		return DetectionRecord{}, ErrInvalidImage
	}
	name, err := classes.Name(box.Class)
	if err != nil {
		return DetectionRecord{}, err
	}
	w := float64(width)
	h := float64(height)
	return DetectionRecord{
		Class:      name,
		Confidence: box.Confidence,
		Box: [4]float64{
			box.X1 / w,
			box.Y1 / h,
			(box.X2 - box.X1) / w,
			(box.Y2 - box.Y1) / h,
		},
	}, nil
}

// NormalizeAll normalizes every box, preserving order.
// The result is never nil, so that it serializes to [] and not null.
func NormalizeAll(boxes []RawBox, width, height int, classes ClassNameTable) ([]DetectionRecord, error) {
	records := make([]DetectionRecord, 0, len(boxes))
	for _, b := range boxes {
		r, err := Normalize(b, width, height, classes)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
