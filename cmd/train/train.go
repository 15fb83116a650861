package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/detectd/pkg/runs"
	"github.com/cyclopcam/detectd/pkg/ultralytics"
	"github.com/cyclopcam/logs"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// executableDir is the default root, so that the base model and dataset config are found
// next to the binary, no matter where it is launched from.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func main() {
	parser := argparse.NewParser("train", "Train a YOLOv8 object detector")
	epochs := parser.Int("", "epochs", &argparse.Options{Help: "Number of epochs", Default: ultralytics.DefaultEpochs})
	imgsz := parser.Int("", "imgsz", &argparse.Options{Help: "Image size", Default: ultralytics.DefaultImageSize})
	root := parser.String("", "root", &argparse.Options{Help: "Directory containing " + ultralytics.BaseModel + " and " + ultralytics.DatasetConfig, Default: ""})
	export := parser.Flag("", "export", &argparse.Options{Help: "Export the best weights to ONNX, for the server", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	if *root == "" {
		*root = executableDir()
	}

	device := ultralytics.DetectDevice()
	fmt.Printf("Using device: %v\n", device)

	cfg := ultralytics.NewTrainConfig(*epochs, *imgsz, device)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	runner := ultralytics.NewRunner(logger, *root)
	check(runner.Train(ctx, cfg))

	run, err := runs.Find(runner.ProjectDir(cfg), cfg.Name, runs.ByModTime)
	check(err)
	fmt.Printf("Training finished. Results saved in: %v\n", run.Dir)

	if *export {
		onnxFile, err := runner.ExportONNX(ctx, run.Weights(), cfg.ImageSize)
		check(err)
		fmt.Printf("Exported %v\n", onnxFile)
	}
}
