package nnload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/detectd/pkg/dataset"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct {
	calls int
	err   error
}

func (f *fakeExporter) ExportONNX(ctx context.Context, weights string, imgsz int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	out := ONNXPath(weights)
	return out, os.WriteFile(out, []byte("onnx"), 0644)
}

func TestONNXPath(t *testing.T) {
	require.Equal(t, "runs/detect/train/weights/best.onnx", ONNXPath("runs/detect/train/weights/best.pt"))
}

func TestEnsureONNX(t *testing.T) {
	log := logs.NewTestingLog(t)
	dir := t.TempDir()
	pt := filepath.Join(dir, "best.pt")
	exp := &fakeExporter{}

	// Neither file exists
	_, err := EnsureONNX(context.Background(), log, exp, pt, 640)
	var cfgErr *dataset.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, 0, exp.calls)

	// Only best.pt exists, so it gets exported
	require.NoError(t, os.WriteFile(pt, []byte("pt"), 0644))
	out, err := EnsureONNX(context.Background(), log, exp, pt, 640)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "best.onnx"), out)
	require.Equal(t, 1, exp.calls)

	// The export is up to date
	_, err = EnsureONNX(context.Background(), log, exp, pt, 640)
	require.NoError(t, err)
	require.Equal(t, 1, exp.calls)

	// The weights are newer than the export
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(pt, future, future))
	_, err = EnsureONNX(context.Background(), log, exp, pt, 640)
	require.NoError(t, err)
	require.Equal(t, 2, exp.calls)

	// Export failure
	require.NoError(t, os.Chtimes(pt, future.Add(time.Hour), future.Add(time.Hour)))
	exp.err = errors.New("no python")
	_, err = EnsureONNX(context.Background(), log, exp, pt, 640)
	require.ErrorContains(t, err, "no python")

	// An ONNX path is passed through
	out, err = EnsureONNX(context.Background(), log, exp, "model.onnx", 640)
	require.NoError(t, err)
	require.Equal(t, "model.onnx", out)
}
