package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
)

// StorageFS is a filesystem-based blob store
type StorageFS struct {
	Root string
}

func NewStorageFS(log logs.Log, root string) (*StorageFS, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create root directory %v (relative path %v): %w", absRoot, root, err)
	}
	log.Infof("Storing files in %v", absRoot)
	return &StorageFS{
		Root: absRoot,
	}, nil
}

func (fs *StorageFS) fullPath(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("Invalid file name %v", name)
	}
	return filepath.Join(fs.Root, filepath.FromSlash(name)), nil
}

func (fs *StorageFS) WriteFile(name string) (io.WriteCloser, error) {
	fullPath, err := fs.fullPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(fullPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
}

func (fs *StorageFS) Location(name string) string {
	return filepath.Join(fs.Root, filepath.FromSlash(name))
}
