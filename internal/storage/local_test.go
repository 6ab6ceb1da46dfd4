package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLocalStore(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		artifactDir := filepath.Join(os.TempDir(), "festivid_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(artifactDir) }()

		store, err := NewLocalStore(artifactDir)
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		if store.ArtifactDir() != artifactDir {
			t.Errorf("ArtifactDir() = %v, want %v", store.ArtifactDir(), artifactDir)
		}

		info, err := os.Stat(artifactDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		store, err := NewLocalStore("")
		if err != nil {
			t.Fatalf("NewLocalStore() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "festivid")
		if store.ArtifactDir() != expected {
			t.Errorf("ArtifactDir() = %v, want %v", store.ArtifactDir(), expected)
		}
	})
}

func TestLocalStore_SaveArtifact(t *testing.T) {
	store := setupTestStore(t)

	t.Run("saves under the given name", func(t *testing.T) {
		ctx := context.Background()
		data := bytes.NewReader([]byte("video bytes"))

		path, err := store.SaveArtifact(ctx, "gen-1.mp4", data)
		if err != nil {
			t.Fatalf("SaveArtifact() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		if filepath.Base(path) != "gen-1.mp4" {
			t.Errorf("path %s should end in gen-1.mp4", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "video bytes" {
			t.Errorf("got %q, want %q", string(content), "video bytes")
		}
	})

	t.Run("leaves no partial file behind", func(t *testing.T) {
		ctx := context.Background()

		path, err := store.SaveArtifact(ctx, "gen-2.mp4", bytes.NewReader([]byte("data")))
		if err != nil {
			t.Fatalf("SaveArtifact() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		entries, err := os.ReadDir(store.ArtifactDir())
		if err != nil {
			t.Fatalf("failed to list artifact dir: %v", err)
		}
		for _, e := range entries {
			if strings.Contains(e.Name(), ".partial_") {
				t.Errorf("partial file %s left behind", e.Name())
			}
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.SaveArtifact(ctx, "gen-3.mp4", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_OpenArtifact(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("opens saved artifact", func(t *testing.T) {
		path, err := store.SaveArtifact(ctx, "open-test.mp4", bytes.NewReader([]byte("open data")))
		if err != nil {
			t.Fatalf("SaveArtifact() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		reader, err := store.OpenArtifact(ctx, path)
		if err != nil {
			t.Fatalf("OpenArtifact() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "open data" {
			t.Errorf("got %q, want %q", string(content), "open data")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		_, err := store.OpenArtifact(ctx, "/non/existent/file")
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.OpenArtifact(ctx, "/some/path")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_DeleteArtifact(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := store.SaveArtifact(ctx, "delete-"+randomSuffix()+".mp4", bytes.NewReader([]byte("data")))
			if err != nil {
				t.Fatalf("SaveArtifact() error = %v", err)
			}
			paths = append(paths, path)
		}

		err := store.DeleteArtifact(ctx, paths)
		if err != nil {
			t.Fatalf("DeleteArtifact() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		err := store.DeleteArtifact(ctx, []string{"/non/existent/file"})
		if err != nil {
			t.Errorf("DeleteArtifact() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := store.DeleteArtifact(ctx, []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStore_Publish(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Publish(ctx, "key", bytes.NewReader([]byte("data")))
	if err != ErrS3NotConfigured {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStore(t *testing.T) *LocalStore {
	t.Helper()
	artifactDir := filepath.Join(os.TempDir(), "festivid_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(artifactDir) })

	store, err := NewLocalStore(artifactDir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
