package runs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/detectd/pkg/dataset"
	"github.com/stretchr/testify/require"
)

func makeDirs(t *testing.T, root string, names ...string) {
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n), 0755))
	}
}

func TestLatestByName(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, "train", "train2", "train_full", "predict_full")
	run, err := Latest(root, "train")
	require.NoError(t, err)
	require.Equal(t, "train_full", run.Name())
	require.Equal(t, filepath.Join(root, "train_full", "weights", "best.pt"), run.Weights())
}

func TestLatestIsNotNumeric(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, "train2", "train10")
	run, err := Latest(root, "train")
	require.NoError(t, err)
	// "train2" > "train10" lexicographically
	require.Equal(t, "train2", run.Name())
}

func TestLatestIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, "train1")
	require.NoError(t, os.WriteFile(filepath.Join(root, "train9.txt"), []byte("x"), 0644))
	run, err := Latest(root, "train")
	require.NoError(t, err)
	require.Equal(t, "train1", run.Name())
}

func TestNoRuns(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, "predict")
	_, err := Latest(root, "train")
	var cfgErr *dataset.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	_, err = Latest(filepath.Join(root, "missing"), "train")
	require.True(t, errors.As(err, &cfgErr))
}

func TestByModTime(t *testing.T) {
	root := t.TempDir()
	makeDirs(t, root, "train2", "train10")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "train2"), old, old))
	run, err := Find(root, "train", ByModTime)
	require.NoError(t, err)
	require.Equal(t, "train10", run.Name())
}
