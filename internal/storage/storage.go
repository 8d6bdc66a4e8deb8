// Package storage keeps uploaded files (avatars and submission PDFs) outside
// the database. The database only stores the blob name; the bytes live in a
// BlobStore, either on local disk or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Bucket separates blob namespaces.
type Bucket string

const (
	BucketAvatars     Bucket = "avatars"
	BucketSubmissions Bucket = "submissions"
)

// Buckets lists every bucket the app writes to.
var Buckets = []Bucket{BucketAvatars, BucketSubmissions}

// ErrNotExist is returned by Open when the blob is missing.
var ErrNotExist = errors.New("storage: blob does not exist")

// BlobStore is the minimal object-store surface the app needs.
//
// Delete of a missing blob is not an error. List returns bare names, not
// bucket-prefixed keys.
type BlobStore interface {
	Put(ctx context.Context, bucket Bucket, name, contentType string, r io.Reader) error
	Open(ctx context.Context, bucket Bucket, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, bucket Bucket, name string) error
	List(ctx context.Context, bucket Bucket) ([]string, error)
}

// ValidName rejects names that could escape the bucket.
func ValidName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("storage: invalid blob name %q", name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("storage: invalid blob name %q", name)
	}
	return nil
}
