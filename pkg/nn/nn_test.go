package nn_test

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

// fakeDetector returns the same boxes for every image
type fakeDetector struct {
	config nn.ModelConfig
	boxes  []nn.RawBox
	err    error
	params []nn.DetectionParams
}

func (f *fakeDetector) Close() {}

func (f *fakeDetector) DetectObjects(img *nn.Image, params *nn.DetectionParams) ([]nn.RawBox, error) {
	f.params = append(f.params, *params)
	if f.err != nil {
		return nil, f.err
	}
	return append([]nn.RawBox{}, f.boxes...), nil
}

func (f *fakeDetector) Config() *nn.ModelConfig {
	return &f.config
}

func encodePNG(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeExact(t *testing.T) {
	classes := nn.ClassNameTable{"person"}
	rec, err := nn.Normalize(nn.RawBox{X1: 10, Y1: 20, X2: 110, Y2: 220, Class: 0, Confidence: 0.9}, 200, 400, classes)
	require.NoError(t, err)
	require.Equal(t, "person", rec.Class)
	require.Equal(t, 0.9, rec.Confidence)
	require.Equal(t, [4]float64{0.05, 0.05, 0.5, 0.5}, rec.Box)

	// The full image
	rec, err = nn.Normalize(nn.RawBox{X1: 0, Y1: 0, X2: 640, Y2: 480}, 640, 480, classes)
	require.NoError(t, err)
	require.Equal(t, [4]float64{0, 0, 1, 1}, rec.Box)

	// Out of range values are not clamped
	rec, err = nn.Normalize(nn.RawBox{X1: -10, Y1: 0, X2: 110, Y2: 50}, 100, 100, classes)
	require.NoError(t, err)
	require.Equal(t, -0.1, rec.Box[0])
	require.Equal(t, 1.2, rec.Box[2])
}

func TestNormalizeErrors(t *testing.T) {
	_, err := nn.Normalize(nn.RawBox{X2: 1, Y2: 1}, 0, 10, nn.ClassNameTable{"a"})
	require.ErrorIs(t, err, nn.ErrInvalidImage)

	_, err = nn.Normalize(nn.RawBox{X2: 1, Y2: 1, Class: 3}, 10, 10, nn.ClassNameTable{"a"})
	var unknown *nn.UnknownClassError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, 3, unknown.Class)
}

func TestNormalizeRoundTrip(t *testing.T) {
	boxes := []nn.RawBox{
		{X1: 3, Y1: 7, X2: 51.5, Y2: 99, Class: 0, Confidence: 0.5},
		{X1: 0, Y1: 0, X2: 1, Y2: 1, Class: 1, Confidence: 0.31},
		{X1: 120.25, Y1: 33, X2: 639, Y2: 479, Class: 1, Confidence: 0.99},
	}
	classes := nn.ClassNameTable{"a", "b"}
	for _, b := range boxes {
		rec, err := nn.Normalize(b, 640, 480, classes)
		require.NoError(t, err)
		back := rec.Denormalize(640, 480)
		require.InDelta(t, b.X1, back.X1, 1e-9)
		require.InDelta(t, b.Y1, back.Y1, 1e-9)
		require.InDelta(t, b.X2, back.X2, 1e-9)
		require.InDelta(t, b.Y2, back.Y2, 1e-9)
	}
}

func TestNormalizeAllEmpty(t *testing.T) {
	records, err := nn.NormalizeAll(nil, 10, 10, nil)
	require.NoError(t, err)
	require.NotNil(t, records)
	j, _ := json.Marshal(records)
	require.Equal(t, "[]", string(j))
}

func TestDetectionRecordJSON(t *testing.T) {
	j, err := json.Marshal(nn.DetectionRecord{Class: "widget", Confidence: 0.9, Box: [4]float64{0.1, 0.1, 0.5, 0.5}})
	require.NoError(t, err)
	require.Equal(t, `{"class":"widget","confidence":0.75,"box":[0.1,0.1,0.4,0.4]}`, string(j))
}

func TestCOCOClasses(t *testing.T) {
	require.Equal(t, 80, len(nn.COCOClasses))
	require.Equal(t, "person", nn.COCOClasses[0])
	require.Equal(t, "toothbrush", nn.COCOClasses[79])
}

func TestDecodeImage(t *testing.T) {
	img, err := nn.DecodeImage(encodePNG(t, 5, 3))
	require.NoError(t, err)
	require.Equal(t, 5, img.Width)
	require.Equal(t, 3, img.Height)
	require.Equal(t, 3, img.NChan)
	require.Equal(t, 5*3*3, len(img.Pixels))
	// Pixel (4,2) = R:4 G:2 B:7
	i := 2*img.Stride() + 4*3
	require.Equal(t, []byte{4, 2, 7}, img.Pixels[i:i+3])
	require.Equal(t, color.RGBA{R: 4, G: 2, B: 7, A: 255}, img.At(4, 2))

	var decErr *nn.DecodeError
	_, err = nn.DecodeImage(nil)
	require.True(t, errors.As(err, &decErr))
	_, err = nn.DecodeImage([]byte("this is not an image"))
	require.True(t, errors.As(err, &decErr))
}

// pngWithHeaderSize returns a tiny PNG whose header claims width x height
func pngWithHeaderSize(t *testing.T, width, height int) []byte {
	data := encodePNG(t, 4, 4)
	// IHDR payload starts at 16 (width, height, ...). Its CRC covers bytes 12..28 and sits at 29.
	binary.BigEndian.PutUint32(data[16:], uint32(width))
	binary.BigEndian.PutUint32(data[20:], uint32(height))
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeImageLimit(t *testing.T) {
	var decErr *nn.DecodeError

	huge := pngWithHeaderSize(t, 40000, 40000)
	require.Less(t, len(huge), 1024)
	_, err := nn.DecodeImage(huge)
	require.True(t, errors.As(err, &decErr))
	require.Contains(t, err.Error(), "too large")

	data := encodePNG(t, 100, 200)
	_, err = nn.DecodeImageLimit(data, 19999)
	require.True(t, errors.As(err, &decErr))
	img, err := nn.DecodeImageLimit(data, 20000)
	require.NoError(t, err)
	require.Equal(t, 100, img.Width)

	svc := nn.NewService(logs.NewTestingLog(t), &fakeDetector{config: nn.ModelConfig{Classes: []string{"a"}}})
	svc.MaxPixels = 1000
	_, err = svc.InferBytes(data, nil)
	require.True(t, errors.As(err, &decErr))
}

func TestServiceWidget(t *testing.T) {
	model := &fakeDetector{
		config: nn.ModelConfig{Classes: []string{"widget"}},
		boxes:  []nn.RawBox{{X1: 10, Y1: 20, X2: 60, Y2: 120, Class: 0, Confidence: 0.9}},
	}
	svc := nn.NewService(logs.NewTestingLog(t), model)
	records, err := svc.InferBytes(encodePNG(t, 100, 200), nil)
	require.NoError(t, err)
	require.Equal(t, 1, len(records))
	require.Equal(t, "widget", records[0].Class)
	require.Equal(t, 0.9, records[0].Confidence)
	require.Equal(t, [4]float64{0.1, 0.1, 0.5, 0.5}, records[0].Box)

	// Defaults are applied to a nil params
	require.Equal(t, *nn.NewDetectionParams(), model.params[0])
}

func TestServiceIdempotent(t *testing.T) {
	model := &fakeDetector{
		config: nn.ModelConfig{Classes: []string{"a", "b"}},
		boxes: []nn.RawBox{
			{X1: 1, Y1: 2, X2: 3, Y2: 4, Class: 1, Confidence: 0.6},
			{X1: 5, Y1: 6, X2: 7, Y2: 8, Class: 0, Confidence: 0.4},
		},
	}
	svc := nn.NewService(logs.NewTestingLog(t), model)
	data := encodePNG(t, 16, 16)
	first, err := svc.InferBytes(data, nil)
	require.NoError(t, err)
	second, err := svc.InferBytes(data, nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
	// Model output order is preserved
	require.Equal(t, "b", first[0].Class)
	require.Equal(t, "a", first[1].Class)
}

func TestServiceEmptyAndFailure(t *testing.T) {
	model := &fakeDetector{config: nn.ModelConfig{Classes: []string{"a"}}}
	svc := nn.NewService(logs.NewTestingLog(t), model)
	records, err := svc.InferBytes(encodePNG(t, 8, 8), &nn.DetectionParams{ProbabilityThreshold: 0.5})
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Equal(t, 0, len(records))
	require.Equal(t, float32(0.5), model.params[0].ProbabilityThreshold)
	require.Equal(t, float32(nn.DefaultNmsIouThreshold), model.params[0].NmsIouThreshold)

	model.err = errors.New("out of memory")
	_, err = svc.InferBytes(encodePNG(t, 8, 8), nil)
	var infErr *nn.InferenceError
	require.True(t, errors.As(err, &infErr))
	require.Contains(t, err.Error(), "out of memory")

	_, err = svc.InferBytes([]byte("not an image"), nil)
	require.Error(t, err)

	stats := svc.Stats.Snapshot()
	require.Equal(t, int64(1), stats.Images)
	require.Equal(t, int64(2), stats.Failures)
}

func TestRunInferenceOnDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.png", "b.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), encodePNG(t, 20, 10), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	perImage := map[string][]nn.RawBox{
		"a.png": {{X2: 1, Y2: 1, Class: 0, Confidence: 0.9}},
		"b.png": {},
		"c.png": {{X2: 1, Y2: 1, Class: 0, Confidence: 0.8}, {X2: 2, Y2: 2, Class: 1, Confidence: 0.7}},
	}
	model := &fakeDetector{config: nn.ModelConfig{Classes: []string{"OxygenTank", "NitrogenTank"}}}

	lines := []string{}
	tally, err := nn.RunInferenceOnDirectory(&perNameDetector{fakeDetector: model, next: func() []nn.RawBox {
		return perImage[[]string{"a.png", "b.png", "c.png"}[len(lines)]]
	}}, dir, nn.InferenceOptions{}, func(r *nn.ImageResult) error {
		lines = append(lines, nn.ImageLine(r.Name, r.Labels.Objects, model.config.ClassTable()))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"a.png: OxygenTank",
		"b.png: No detections",
		"c.png: OxygenTank, NitrogenTank",
	}, lines)
	require.Equal(t, 3, tally.Images)
	require.Equal(t, map[int]int{0: 2, 1: 1}, tally.Counts)

	var out strings.Builder
	tally.WriteSummary(&out, model.config.ClassTable(), 1500*time.Millisecond, "runs/detect/predict_full")
	require.Equal(t, "\nDetection Summary:\n"+
		" - OxygenTank          : 2 detections\n"+
		" - NitrogenTank        : 1 detections\n"+
		"\nProcessed 3 images in 1.50s\n"+
		"Results saved in: runs/detect/predict_full\n", out.String())
}

// perNameDetector returns a different set of boxes for each successive image
type perNameDetector struct {
	*fakeDetector
	next func() []nn.RawBox
}

func (p *perNameDetector) DetectObjects(img *nn.Image, params *nn.DetectionParams) ([]nn.RawBox, error) {
	return p.next(), nil
}

func TestSummaryNoDetections(t *testing.T) {
	tally := nn.NewTally()
	tally.AddImage(nil)
	tally.AddImage(nil)
	var out strings.Builder
	tally.WriteSummary(&out, nil, 0, "out")
	require.Contains(t, out.String(), "No objects detected in any test image.\n")
	require.Contains(t, out.String(), "Processed 2 images in 0.00s\n")
}

func TestSummaryUnknownClass(t *testing.T) {
	tally := nn.NewTally()
	tally.AddImage([]nn.RawBox{{Class: 5}, {Class: 0}})
	var out strings.Builder
	tally.WriteSummary(&out, nn.ClassNameTable{"cat"}, time.Second, "out")
	require.Contains(t, out.String(), " - cat                 : 1 detections\n - class_5             : 1 detections\n")
}

func TestYOLOLine(t *testing.T) {
	b := nn.RawBox{X1: 10, Y1: 20, X2: 50, Y2: 100, Class: 2, Confidence: 0.75}
	require.Equal(t, "2 0.300000 0.300000 0.400000 0.400000 0.750000", b.YOLOLine(100, 200))
}

func TestRectIOU(t *testing.T) {
	a := nn.RectFromCorners(0, 0, 10, 10)
	b := nn.RectFromCorners(5, 0, 15, 10)
	require.InDelta(t, 50.0/150.0, a.IOU(b), 1e-6)
	require.Equal(t, float32(0), a.IOU(nn.RectFromCorners(20, 20, 30, 30)))
	require.Equal(t, nn.RectFromCorners(0, 0, 5, 5), nn.RectFromCorners(-5, -5, 5, 5).Clamp(100, 100))
}
