package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStore implements the Store interface using local disk.
// It keeps artifacts in a configurable directory and does not support
// S3 publishing unless wrapped with S3Store.
type LocalStore struct {
	artifactDir string
}

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a new LocalStore instance.
// If artifactDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStore(artifactDir string) (*LocalStore, error) {
	if artifactDir == "" {
		artifactDir = filepath.Join(os.TempDir(), "festivid")
	}

	if err := os.MkdirAll(artifactDir, 0750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	return &LocalStore{artifactDir: artifactDir}, nil
}

// ArtifactDir returns the artifact directory path.
func (s *LocalStore) ArtifactDir() string {
	return s.artifactDir
}

// SaveArtifact writes the artifact under the given name and returns the
// file path. The write goes through a temp file and a rename so a partially
// written artifact is never visible under its final name.
func (s *LocalStore) SaveArtifact(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.artifactDir, name+".partial_*")
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}
	tmpName := f.Name()

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write artifact file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close artifact file: %w", err)
	}

	finalPath := filepath.Join(s.artifactDir, name)
	if err := os.Rename(tmpName, finalPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("finalize artifact file: %w", err)
	}

	return finalPath, nil
}

// OpenArtifact opens a saved artifact for reading.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStore) OpenArtifact(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}

	return f, nil
}

// DeleteArtifact removes the specified artifact files.
// It continues even if some files fail to delete, returning the first
// error encountered.
func (s *LocalStore) DeleteArtifact(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove artifact file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStore and returns ErrS3NotConfigured.
func (s *LocalStore) Publish(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
