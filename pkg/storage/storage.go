package storage

import (
	"bytes"
	"io"
)

// Storage is an abstraction of a blob store (a directory on disk, or a GCS bucket).
// Names use forward slashes, eg "predict_full/labels/a.txt".
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// Location returns a human readable location of name, for log messages (eg a path, or gs://bucket/name)
	Location(name string) string
}

func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

func WriteBytes(s Storage, name string, content []byte) error {
	return WriteFile(s, name, bytes.NewReader(content))
}
