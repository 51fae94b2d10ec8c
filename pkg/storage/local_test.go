package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutOpenDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root, nil)
	require.NoError(t, err)

	key := Key("MeetingDocument", "owner-1", "20240101120000_AbCdEfGh.txt")
	require.NoError(t, store.Put(ctx, key, bytes.NewReader([]byte("hello")), 5, "text/plain"))

	assert.FileExists(t, filepath.Join(root, "MeetingDocument", "owner-1", "20240101120000_AbCdEfGh.txt"))
	assert.Equal(t, filepath.Join(root, "MeetingDocument", "owner-1", "20240101120000_AbCdEfGh.txt"), store.Location(key))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Open(ctx, key)
	assert.ErrorIs(t, err, ErrBlobNotFound)

	// deleting again is not an error
	assert.NoError(t, store.Delete(ctx, key))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLocalStorePutFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root, nil)
	require.NoError(t, err)

	key := Key("ProfileImage", "owner-2", "a.png")
	err = store.Put(ctx, key, failingReader{}, 10, "image/png")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "ProfileImage", "owner-2"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)

	for _, key := range []string{"", "/etc/passwd", "../outside.txt", "a/../../b", "a\\b", "a//b"} {
		err := store.Put(ctx, key, bytes.NewReader([]byte("x")), 1, "text/plain")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
