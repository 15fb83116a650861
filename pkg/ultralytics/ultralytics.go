package ultralytics

// Package ultralytics drives the "yolo" command line tool, which trains and exports models.
// We treat the tool as a black box: we choose its arguments, and then find its output by
// its directory conventions.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cyclopcam/detectd/pkg/shell"
	"github.com/cyclopcam/logs"
)

// DefaultExecutable is the name of the trainer's command line tool
const DefaultExecutable = "yolo"

// Runner invokes the yolo tool
type Runner struct {
	Log        logs.Log
	Executable string // Defaults to DefaultExecutable
	Dir        string // Working directory for the tool. Relative paths in its arguments resolve against this.
}

func NewRunner(log logs.Log, dir string) *Runner {
	return &Runner{
		Log:        log,
		Executable: DefaultExecutable,
		Dir:        dir,
	}
}

func (r *Runner) command(args []string) *shell.Command {
	exe := r.Executable
	if exe == "" {
		exe = DefaultExecutable
	}
	return &shell.Command{
		Dir:    r.Dir,
		Name:   exe,
		Args:   args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (r *Runner) run(ctx context.Context, args []string) error {
	cmd := r.command(args)
	r.Log.Infof("Running %v (in %v)", cmd, r.Dir)
	if err := cmd.Stream(ctx); err != nil {
		return fmt.Errorf("%v failed: %w", cmd.Name, err)
	}
	return nil
}

// DetectDevice returns "0" (the first CUDA device) if an NVIDIA GPU is visible, otherwise "cpu"
func DetectDevice() string {
	out, err := shell.Run("nvidia-smi", "-L")
	return deviceFromSMI(out, err)
}

func deviceFromSMI(out string, err error) string {
	if err == nil && strings.Contains(out, "GPU") {
		return "0"
	}
	return "cpu"
}

// FormatBool formats a bool the way the tool's argument parser expects it
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ExportONNX exports PyTorch weights (eg best.pt) to ONNX, at a fixed input size.
// The ONNX file is written next to the weights, and its path is returned.
func (r *Runner) ExportONNX(ctx context.Context, weights string, imgsz int) (string, error) {
	args := ExportArgs(weights, imgsz)
	if err := r.run(ctx, args); err != nil {
		return "", err
	}
	onnxFile := strings.TrimSuffix(weights, filepath.Ext(weights)) + ".onnx"
	full := onnxFile
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.Dir, full)
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("Export finished, but %v was not created: %w", full, err)
	}
	return full, nil
}

// ExportArgs returns the arguments of an ONNX export
func ExportArgs(weights string, imgsz int) []string {
	return []string{
		"export",
		"model=" + weights,
		"format=onnx",
		"imgsz=" + strconv.Itoa(imgsz),
	}
}
