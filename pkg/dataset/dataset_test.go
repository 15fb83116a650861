package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, filename, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(filename), 0755))
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
}

func TestParseNamesList(t *testing.T) {
	c, err := Parse([]byte("train: train\nval: val\ntest: test\nnc: 2\nnames: ['OxygenTank', 'NitrogenTank']\n"))
	require.NoError(t, err)
	require.Equal(t, "test", c.Test)
	classes, err := c.Classes()
	require.NoError(t, err)
	require.Equal(t, []string{"OxygenTank", "NitrogenTank"}, classes)
}

func TestParseNamesMap(t *testing.T) {
	c, err := Parse([]byte("names:\n  1: NitrogenTank\n  0: OxygenTank\n"))
	require.NoError(t, err)
	require.Equal(t, Names{"OxygenTank", "NitrogenTank"}, c.Names)

	_, err = Parse([]byte("names:\n  0: a\n  5: b\n"))
	require.Error(t, err)
	_, err = Parse([]byte("names: hello\n"))
	require.Error(t, err)
}

func TestClassCountMismatch(t *testing.T) {
	c, err := Parse([]byte("nc: 3\nnames: [a, b]\n"))
	require.NoError(t, err)
	_, err = c.Classes()
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

func TestTestImagesDir(t *testing.T) {
	root := t.TempDir()
	yamlFile := filepath.Join(root, "yolo_params.yaml")

	// No test key
	writeFile(t, yamlFile, "train: data/train\n")
	c, err := Load(yamlFile)
	require.NoError(t, err)
	_, err = c.TestImagesDir()
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	// Test key, but no images directory
	writeFile(t, yamlFile, "test: data/test\n")
	c, err = Load(yamlFile)
	require.NoError(t, err)
	_, err = c.TestImagesDir()
	require.True(t, errors.As(err, &cfgErr))

	// Present, but empty
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data/test/images"), 0755))
	_, err = c.TestImagesDir()
	require.True(t, errors.As(err, &cfgErr))
	require.Contains(t, err.Error(), "empty")

	// Relative to the YAML file
	writeFile(t, filepath.Join(root, "data/test/images/a.png"), "png")
	dir, err := c.TestImagesDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data/test/images"), dir)

	// 'path' does not change where 'test' is found
	writeFile(t, yamlFile, "path: data\ntest: data/test\n")
	c, err = Load(yamlFile)
	require.NoError(t, err)
	dir, err = c.TestImagesDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data/test/images"), dir)

	// Absolute
	writeFile(t, yamlFile, "test: "+filepath.Join(root, "data/test")+"\n")
	c, err = Load(yamlFile)
	require.NoError(t, err)
	dir, err = c.TestImagesDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data/test/images"), dir)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.True(t, errors.Is(err, os.ErrNotExist))
}
