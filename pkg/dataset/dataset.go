package dataset

// Package dataset reads the trainer's dataset description (yolo_params.yaml)

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ConfigurationError means that the files on disk are not laid out the way a run needs them
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// Names is the class name list of a dataset.
// In YAML it is either a list, or a map from class index to name.
type Names []string

func (n *Names) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	case yaml.MappingNode:
		var byIndex map[int]string
		if err := value.Decode(&byIndex); err != nil {
			return err
		}
		indices := make([]int, 0, len(byIndex))
		for i := range byIndex {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		list := make([]string, len(indices))
		for i, idx := range indices {
			if idx != i {
				return fmt.Errorf("Class indices in 'names' must run from 0 to %v", len(indices)-1)
			}
			list[i] = byIndex[idx]
		}
		*n = list
		return nil
	}
	return fmt.Errorf("'names' must be a list or a map, at line %v", value.Line)
}

// Config is the dataset description
type Config struct {
	Path  string `yaml:"path"`
	Train string `yaml:"train"`
	Val   string `yaml:"val"`
	Test  string `yaml:"test"`
	NC    int    `yaml:"nc"`
	Names Names  `yaml:"names"`

	filename string
}

// Load reads a dataset YAML file.
// A missing file is a ConfigurationError.
func Load(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ConfigurationError{Message: "Failed to read dataset config " + filename, Err: err}
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, &ConfigurationError{Message: "Error parsing dataset config " + filename, Err: err}
	}
	c.filename = filename
	return c, nil
}

func Parse(raw []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Filename returns the file that the config was loaded from
func (c *Config) Filename() string {
	return c.filename
}

// Resolve turns a path from the config into a filesystem path.
// Relative paths resolve against the directory of the YAML file. The 'path' key is only
// used by the trainer, so it plays no part here.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.filename), p)
}

// TestImagesDir returns <test>/images, and checks that it is a directory with at least one entry
func (c *Config) TestImagesDir() (string, error) {
	if c.Test == "" {
		return "", configErrorf("No 'test' entry in %v", c.filename)
	}
	dir := filepath.Join(c.Resolve(c.Test), "images")
	st, err := os.Stat(dir)
	if err != nil {
		return "", &ConfigurationError{Message: "Test images directory not found", Err: err}
	}
	if !st.IsDir() {
		return "", configErrorf("Test images path %v is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &ConfigurationError{Message: "Failed to read test images directory", Err: err}
	}
	if len(entries) == 0 {
		return "", configErrorf("Test images directory %v is empty", dir)
	}
	return dir, nil
}

// Classes returns the class names, checking them against 'nc' when both are present
func (c *Config) Classes() ([]string, error) {
	if c.NC != 0 && len(c.Names) != 0 && c.NC != len(c.Names) {
		return nil, configErrorf("Dataset %v has nc=%v, but %v names", c.filename, c.NC, len(c.Names))
	}
	return c.Names, nil
}
