package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// compile-time check
var _ BlobStore = (*LocalStore)(nil)

// LocalStore keeps each bucket as a directory under Root.
type LocalStore struct {
	root string
}

// NewLocalStore creates root and one directory per bucket.
func NewLocalStore(root string) (*LocalStore, error) {
	for _, b := range Buckets {
		if err := os.MkdirAll(filepath.Join(root, string(b)), 0o755); err != nil {
			return nil, fmt.Errorf("storage: creating %s dir: %w", b, err)
		}
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(bucket Bucket, name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, string(bucket), name), nil
}

// Put writes to a temp file in the bucket dir and renames it into place, so
// readers never observe a half-written blob.
func (s *LocalStore) Put(_ context.Context, bucket Bucket, name, _ string, r io.Reader) error {
	dst, err := s.path(bucket, name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: writing %s/%s: %w", bucket, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: closing %s/%s: %w", bucket, name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("storage: moving %s/%s into place: %w", bucket, name, err)
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, bucket Bucket, name string) (io.ReadCloser, error) {
	p, err := s.path(bucket, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storage: opening %s/%s: %w", bucket, name, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, bucket Bucket, name string) error {
	p, err := s.path(bucket, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: deleting %s/%s: %w", bucket, name, err)
	}
	return nil
}

// List skips directories and in-flight temp files.
func (s *LocalStore) List(_ context.Context, bucket Bucket) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(bucket)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("storage: listing %s: %w", bucket, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".upload-") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
