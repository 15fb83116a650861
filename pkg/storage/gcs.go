package storage

import (
	"context"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
)

// StorageGCS is a Google Cloud Storage-based blob store.
// Every name is placed under prefix, so that several runs can share a bucket.
type StorageGCS struct {
	bucketName string
	prefix     string
	bucket     *gcs.BucketHandle
}

// NewStorageGCS connects to a bucket, using Application Default Credentials
func NewStorageGCS(log logs.Log, bucketName, prefix string) (*StorageGCS, error) {
	ctx := context.Background()
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	s := &StorageGCS{
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		bucket:     client.Bucket(bucketName),
	}
	log.Infof("Storing files in %v", s.Location(""))
	return s, nil
}

func (s *StorageGCS) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *StorageGCS) WriteFile(name string) (io.WriteCloser, error) {
	ctx := context.Background()
	w := s.bucket.Object(s.objectName(name)).NewWriter(ctx)
	return w, nil
}

func (s *StorageGCS) Location(name string) string {
	return "gs://" + s.bucketName + "/" + s.objectName(name)
}
