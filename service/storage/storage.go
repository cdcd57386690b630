// Package storage publishes run artifacts.
package storage

import "io"

// A Service provides a content store.
// It is implemented by service/storage/s3.Service and
// service/storage/localfile.Service.
type Service interface {
	// Upload stores the contents of r under key and returns its URL.
	Upload(key string, r io.Reader) (string, error)
	Download(key string) (io.ReadCloser, error)
}
