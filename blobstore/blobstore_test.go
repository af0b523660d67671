package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"local":  NewLocalStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			data := []byte("hello world, this is a test blob")

			w, err := store.Create(ctx, "snap/data-001.bin")
			require.NoError(t, err)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())

			blob, err := store.Open(ctx, "snap/data-001.bin")
			require.NoError(t, err)
			defer blob.Close()
			require.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "world", string(buf))

			rc, err := blob.ReadRange(ctx, 13, 4)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "this", string(got))

			require.NoError(t, store.Put(ctx, "snap/data-002.bin", []byte("x")))
			require.NoError(t, store.Put(ctx, "other/z.bin", []byte("y")))

			names, err := store.List(ctx, "snap/")
			require.NoError(t, err)
			assert.Equal(t, []string{"snap/data-001.bin", "snap/data-002.bin"}, names)

			names, err = store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"other/z.bin", "snap/data-001.bin", "snap/data-002.bin"}, names)

			require.NoError(t, store.Delete(ctx, "snap/data-001.bin"))
			require.NoError(t, store.Delete(ctx, "snap/data-001.bin"))

			_, err = store.Open(ctx, "snap/data-001.bin")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestBlobStore_ReadRangeBoundaries(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "b.bin", []byte("0123456789")))

			blob, err := store.Open(ctx, "b.bin")
			require.NoError(t, err)
			defer blob.Close()

			rc, err := blob.ReadRange(ctx, 8, 5)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "89", string(got))

			_, err = blob.ReadRange(ctx, 20, 5)
			assert.ErrorIs(t, err, io.EOF)

			buf := make([]byte, 4)
			n, err := blob.ReadAt(ctx, buf, 8)
			assert.Equal(t, 2, n)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReadAll(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "full", []byte("payload")))
			require.NoError(t, store.Put(ctx, "empty", nil))

			got, err := ReadAll(ctx, store, "full")
			require.NoError(t, err)
			assert.Equal(t, "payload", string(got))

			got, err = ReadAll(ctx, store, "empty")
			require.NoError(t, err)
			assert.Empty(t, got)

			_, err = ReadAll(ctx, store, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_CreateIsAtomic(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	ctx := context.Background()

	w, err := store.Create(ctx, "a/b.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "a", "b.bin"))
	assert.True(t, os.IsNotExist(err))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	assert.Error(t, w.Close())

	data, err := os.ReadFile(filepath.Join(root, "a", "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, "partial", string(data))
}

func TestMemoryStore_PutCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := ReadAll(ctx, store, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestAbort(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			w, err := store.Create(ctx, "aborted.bin")
			require.NoError(t, err)
			_, err = w.Write([]byte("half"))
			require.NoError(t, err)
			require.NoError(t, Abort(w))

			_, err = store.Open(ctx, "aborted.bin")
			assert.ErrorIs(t, err, ErrNotFound)

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}
