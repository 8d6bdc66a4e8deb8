package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLocalStore_PutOpenDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, BucketSubmissions, "a.pdf", "application/pdf", strings.NewReader("%PDF-1.4 hi")))

	rc, err := s.Open(ctx, BucketSubmissions, "a.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 hi", string(body))

	// Same name in another bucket is a different blob.
	_, err = s.Open(ctx, BucketAvatars, "a.pdf")
	assert.True(t, errors.Is(err, ErrNotExist))

	require.NoError(t, s.Delete(ctx, BucketSubmissions, "a.pdf"))
	_, err = s.Open(ctx, BucketSubmissions, "a.pdf")
	assert.ErrorIs(t, err, ErrNotExist)

	// Deleting again is fine.
	assert.NoError(t, s.Delete(ctx, BucketSubmissions, "a.pdf"))
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, BucketAvatars, "me.png", "image/png", strings.NewReader("one")))
	require.NoError(t, s.Put(ctx, BucketAvatars, "me.png", "image/png", strings.NewReader("two")))

	rc, err := s.Open(ctx, BucketAvatars, "me.png")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "two", string(body))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "..", "../escape.pdf", `a\b.pdf`, "dir/file.pdf"} {
		err := s.Put(ctx, BucketSubmissions, name, "application/pdf", strings.NewReader("x"))
		assert.Error(t, err, "name %q should be rejected", name)
	}
	_, err := os.Stat(filepath.Join(s.root, "escape.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, n := range []string{"b.pdf", "a.pdf"} {
		require.NoError(t, s.Put(ctx, BucketSubmissions, n, "application/pdf", strings.NewReader("x")))
	}
	// Leftover temp file from a crashed upload.
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "submissions", ".upload-123"), nil, 0o644))

	names, err := s.List(ctx, BucketSubmissions)
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, names)
}

func TestCleaner_Sweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, n := range []string{"keep.pdf", "orphan1.pdf", "orphan2.pdf"} {
		require.NoError(t, s.Put(ctx, BucketSubmissions, n, "application/pdf", strings.NewReader("x")))
	}
	c := NewCleaner(s, testLogger(), nil)

	orphans, err := c.Sweep(ctx, BucketSubmissions, []string{"keep.pdf"}, true)
	require.NoError(t, err)
	sort.Strings(orphans)
	assert.Equal(t, []string{"orphan1.pdf", "orphan2.pdf"}, orphans)

	names, _ := s.List(ctx, BucketSubmissions)
	assert.Len(t, names, 3, "dry run must not delete")

	_, err = c.Sweep(ctx, BucketSubmissions, []string{"keep.pdf"}, false)
	require.NoError(t, err)
	names, _ = s.List(ctx, BucketSubmissions)
	assert.Equal(t, []string{"keep.pdf"}, names)
}

type failingStore struct {
	*LocalStore
}

func (failingStore) Delete(context.Context, Bucket, string) error {
	return errors.New("disk on fire")
}

func TestCleaner_RemoveSwallowsErrors(t *testing.T) {
	c := NewCleaner(failingStore{newTestStore(t)}, testLogger(), nil)
	assert.NotPanics(t, func() {
		c.Remove(context.Background(), BucketAvatars, "x.png", "")
	})
}
