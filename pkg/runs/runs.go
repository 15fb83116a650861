package runs

// Package runs finds the output directories of training runs.
// The trainer writes each run to <project>/<name>, <project>/<name>2, <project>/<name>3, ...

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cyclopcam/detectd/pkg/dataset"
)

// TrainingRun is the output directory of one training run
type TrainingRun struct {
	Dir string
}

// Weights returns the path of the best weights, eg <dir>/weights/best.pt
func (r *TrainingRun) Weights() string {
	return filepath.Join(r.Dir, "weights", "best.pt")
}

// Name returns the directory name of the run
func (r *TrainingRun) Name() string {
	return filepath.Base(r.Dir)
}

// Finder picks the "latest" of the candidate run directories, all of which are directories
// whose name begins with the run prefix.
type Finder func(candidates []os.DirEntry) os.DirEntry

// ByName picks the lexicographically greatest name.
// This is NOT numeric order: "train9" beats "train10", and "train_full" beats "train".
func ByName(candidates []os.DirEntry) os.DirEntry {
	sorted := append([]os.DirEntry{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name() > sorted[j].Name()
	})
	return sorted[0]
}

// ByModTime picks the most recently modified directory, falling back to ByName on ties
func ByModTime(candidates []os.DirEntry) os.DirEntry {
	best := -1
	var bestTime int64
	for i, c := range candidates {
		info, err := c.Info()
		if err != nil {
			continue
		}
		t := info.ModTime().UnixNano()
		if best == -1 || t > bestTime || (t == bestTime && c.Name() > candidates[best].Name()) {
			best = i
			bestTime = t
		}
	}
	if best == -1 {
		return ByName(candidates)
	}
	return candidates[best]
}

// Latest finds the latest run under detectDir whose name begins with prefix, using ByName
func Latest(detectDir, prefix string) (*TrainingRun, error) {
	return Find(detectDir, prefix, ByName)
}

// Find finds the run under detectDir whose name begins with prefix, as chosen by finder.
// Having no candidates is a ConfigurationError.
func Find(detectDir, prefix string, finder Finder) (*TrainingRun, error) {
	entries, err := os.ReadDir(detectDir)
	if err != nil {
		return nil, &dataset.ConfigurationError{Message: "No training runs found", Err: err}
	}
	candidates := []os.DirEntry{}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, &dataset.ConfigurationError{Message: "No training runs starting with '" + prefix + "' in " + detectDir}
	}
	return &TrainingRun{Dir: filepath.Join(detectDir, finder(candidates).Name())}, nil
}
