// Package storage provides persistence for generated video artifacts.
// It defines the Store interface (port) for hexagonal architecture and
// implementations for local disk and S3-backed delivery.
package storage

import (
	"context"
	"io"
)

// Store defines the interface for artifact persistence.
// Implementations keep generated videos on local disk and optionally
// publish them to S3 for URL delivery.
type Store interface {
	// SaveArtifact writes the artifact bytes under the given name and
	// returns the local file path.
	SaveArtifact(ctx context.Context, name string, data io.Reader) (path string, err error)

	// OpenArtifact opens a previously saved artifact for reading.
	// The caller is responsible for closing the returned ReadCloser.
	OpenArtifact(ctx context.Context, path string) (io.ReadCloser, error)

	// DeleteArtifact removes the specified artifact files.
	// It continues even if some files fail to delete.
	DeleteArtifact(ctx context.Context, paths []string) error

	// Publish uploads an artifact to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
