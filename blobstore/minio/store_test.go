package minio

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/revsearch/blobstore"
)

// fakeServer answers the path-style object requests used by Store.
type fakeServer struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, err := readPayload(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[key] = data
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		http.ServeContent(w, r, "", time.Unix(1700000000, 0), bytes.NewReader(data))
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeServer) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// readPayload decodes aws-chunked bodies and returns plain bodies unchanged.
func readPayload(r *http.Request) ([]byte, error) {
	if r.Header.Get("X-Amz-Decoded-Content-Length") == "" {
		return io.ReadAll(r.Body)
	}
	var out []byte
	br := bufio.NewReader(r.Body)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out, nil
		}
		chunk := make([]byte, size+2)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk[:size]...)
	}
}

func newFakeStore(t *testing.T, prefix string) (*Store, *fakeServer) {
	t.Helper()
	fake := &fakeServer{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return NewStore(client, "bucket", prefix), fake
}

func TestStore_PutOpenRead(t *testing.T) {
	store, fake := newFakeStore(t, "snapshots/")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a/data.bin", []byte("hello minio world")))
	assert.True(t, fake.has("bucket/snapshots/a/data.bin"))

	blob, err := store.Open(ctx, "a/data.bin")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(17), blob.Size())

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "minio", string(got))

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 12)
	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "world", string(buf[:n]))

	all, err := blobstore.ReadAll(ctx, store, "a/data.bin")
	require.NoError(t, err)
	assert.Equal(t, "hello minio world", string(all))
}

func TestStore_NotFoundAndDelete(t *testing.T) {
	store, fake := newFakeStore(t, "")
	ctx := context.Background()

	_, err := store.Open(ctx, "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, "gone", []byte("x")))
	require.NoError(t, store.Delete(ctx, "gone"))
	assert.False(t, fake.has("bucket/gone"))
}

func TestRelName(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "a/b", "a/b"},
		{"snapshots", "snapshots/a/b", "a/b"},
		{"snapshots", "snapshots/", ""},
		{"root/sub", "root/sub/manifest.json", "manifest.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relName(tt.prefix, tt.key), "%s %s", tt.prefix, tt.key)
	}
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, Config{
		Endpoint:     "localhost:9000",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		Bucket:       "test-revsearch",
		Prefix:       "test-prefix/",
		CreateBucket: true,
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	require.NoError(t, store.Put(ctx, "test.txt", []byte("hello minio world")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "test.txt")

	wb, err := store.Create(ctx, "stream.txt")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	got, err := blobstore.ReadAll(ctx, store, "stream.txt")
	require.NoError(t, err)
	assert.Equal(t, "streamed data", string(got))

	require.NoError(t, store.Delete(ctx, "test.txt"))
	require.NoError(t, store.Delete(ctx, "stream.txt"))

	_, err = store.Open(ctx, "test.txt")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
