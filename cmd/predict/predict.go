package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/detectd/pkg/annotate"
	"github.com/cyclopcam/detectd/pkg/dataset"
	"github.com/cyclopcam/detectd/pkg/nn"
	"github.com/cyclopcam/detectd/pkg/nnload"
	"github.com/cyclopcam/detectd/pkg/runs"
	"github.com/cyclopcam/detectd/pkg/storage"
	"github.com/cyclopcam/detectd/pkg/ultralytics"
	"github.com/cyclopcam/logs"
)

const resultsName = "predict_full"

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

type summaryJSON struct {
	Run            string           `json:"run"`
	Classes        []string         `json:"classes"`
	Counts         map[string]int   `json:"counts"`
	ElapsedSeconds float64          `json:"elapsedSeconds"`
	Images         []nn.ImageLabels `json:"images"`
}

// saveResult writes the label file and the annotated image of one test image
func saveResult(store storage.Storage, r *nn.ImageResult, classes nn.ClassNameTable) error {
	stem := strings.TrimSuffix(r.Name, filepath.Ext(r.Name))

	lines := &bytes.Buffer{}
	for _, b := range r.Labels.Objects {
		fmt.Fprintln(lines, b.YOLOLine(r.Labels.Width, r.Labels.Height))
	}
	if err := storage.WriteBytes(store, resultsName+"/labels/"+stem+".txt", lines.Bytes()); err != nil {
		return err
	}

	jpg := &bytes.Buffer{}
	if err := annotate.WriteJPEG(jpg, r.Image, r.Labels.Objects, classes); err != nil {
		return err
	}
	return storage.WriteBytes(store, resultsName+"/"+stem+".jpg", jpg.Bytes())
}

func main() {
	start := time.Now()

	parser := argparse.NewParser("predict", "Run a trained detector over the test images of a dataset")
	root := parser.String("", "root", &argparse.Options{Help: "Directory containing the dataset config and runs/", Default: ""})
	configFile := parser.String("", "config", &argparse.Options{Help: "Dataset config, relative to root", Default: ultralytics.DatasetConfig})
	bucket := parser.String("", "bucket", &argparse.Options{Help: "Write results to this GCS bucket instead of runs/detect", Default: ""})
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
	cfgPath := *configFile
	if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(*root, cfgPath)
	}

	ds, err := dataset.Load(cfgPath)
	check(err)
	fmt.Printf("[INFO] Using dataset config: %v\n", ds.Filename())
	testDir, err := ds.TestImagesDir()
	check(err)
	dsClasses, err := ds.Classes()
	check(err)

	detectDir := filepath.Join(*root, ultralytics.Project)
	run, err := runs.Latest(detectDir, "train")
	check(err)
	fmt.Printf("[INFO] Using trained model weights: %v\n", run.Weights())

	setup := nn.NewModelSetup()
	setup.Fallback = dsClasses
	runner := ultralytics.NewRunner(logger, *root)
	model, err := nnload.LoadRunModel(context.Background(), logger, runner, run.Weights(), ultralytics.DefaultImageSize, setup)
	check(err)
	defer model.Close()

	var store storage.Storage
	if *bucket != "" {
		store, err = storage.NewStorageGCS(logger, *bucket, "")
	} else {
		store, err = storage.NewStorageFS(logger, detectDir)
	}
	check(err)

	fmt.Printf("[INFO] Running full inference on test dataset...\n")
	classes := model.Config().ClassTable()
	summary := summaryJSON{
		Run:     run.Name(),
		Classes: model.Config().Classes,
		Counts:  map[string]int{},
		Images:  []nn.ImageLabels{},
	}
	options := nn.InferenceOptions{
		StdOutProgress: true,
	}
	tally, err := nn.RunInferenceOnDirectory(model, testDir, options, func(r *nn.ImageResult) error {
		summary.Images = append(summary.Images, r.Labels)
		return saveResult(store, r, classes)
	})
	check(err)

	elapsed := time.Since(start)
	for _, c := range tally.Classes() {
		summary.Counts[classes.NameOrIndex(c)] = tally.Counts[c]
	}
	summary.ElapsedSeconds = elapsed.Seconds()
	summaryB, err := json.MarshalIndent(&summary, "", "  ")
	check(err)
	check(storage.WriteBytes(store, resultsName+"/summary.json", summaryB))

	tally.WriteSummary(os.Stdout, classes, elapsed, store.Location(resultsName))
}
