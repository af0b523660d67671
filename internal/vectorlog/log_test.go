package vectorlog

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/revsearch/internal/fs"
	"github.com/hupe1980/revsearch/quantization"
)

func openTestLog(t *testing.T, dim int, optFns ...func(o *Options)) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vectors")
	l, err := Open(path, dim, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func TestLog_AppendLen(t *testing.T) {
	l, path := openTestLog(t, 4)

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	vecs := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}}
	for i, v := range vecs {
		require.NoError(t, l.Append(v))

		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, i+1, n)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, int64((i+1)*4), info.Size())
	}

	// The data file is exactly the concatenated codes.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{127, 0, 0, 0, 0, 127, 0, 0, 0, 0, 127, 0}, data)
}

func TestLog_DimensionMismatch(t *testing.T) {
	l, _ := openTestLog(t, 4)
	require.NoError(t, l.Append([]float32{1, 2, 3, 4}))

	err := l.Append([]float32{1, 2, 3})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLog_ReadAll(t *testing.T) {
	l, _ := openTestLog(t, 3)

	recs, err := l.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 0, recs.Len())

	require.NoError(t, l.Append([]float32{3, 4, 0}))
	require.NoError(t, l.Append([]float32{0, 0, -2}))

	recs, err = l.ReadAll()
	require.NoError(t, err)
	require.Equal(t, 2, recs.Len())
	assert.Equal(t, 3, recs.Dim())

	codec := l.Codec()
	assert.Equal(t, []int8{76, 102, 0}, toInt8(recs.At(0)))
	assert.Equal(t, []int8{0, 0, -127}, toInt8(recs.At(1)))
	assert.InDelta(t, 0.6, codec.DecodeComponent(int8(recs.At(0)[0])), 0.01)
}

func TestLog_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.vectors")

	l, err := Open(path, 4, func(o *Options) { o.Scale = 64 })
	require.NoError(t, err)
	require.NoError(t, l.Append([]float32{1, 0, 0, 0}))
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Close(), ErrClosed)

	t.Run("same parameters", func(t *testing.T) {
		l, err := Open(path, 4)
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, float32(64), l.Scale())
		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("different dimension", func(t *testing.T) {
		_, err := Open(path, 8)
		assert.ErrorIs(t, err, ErrHeaderMismatch)
	})

	t.Run("different scale", func(t *testing.T) {
		_, err := Open(path, 4, func(o *Options) { o.Scale = 127 })
		assert.ErrorIs(t, err, ErrHeaderMismatch)
	})

	t.Run("corrupt header", func(t *testing.T) {
		hdr, err := os.ReadFile(path + HeaderSuffix)
		require.NoError(t, err)
		bad := append([]byte(nil), hdr...)
		bad[9] ^= 0xFF
		require.NoError(t, os.WriteFile(path+HeaderSuffix, bad, 0644))
		defer func() { require.NoError(t, os.WriteFile(path+HeaderSuffix, hdr, 0644)) }()

		_, err = Open(path, 4)
		assert.ErrorIs(t, err, ErrCorruptHeader)
	})
}

func TestLog_AdoptHeaderless(t *testing.T) {
	dir := t.TempDir()

	t.Run("whole records", func(t *testing.T) {
		path := filepath.Join(dir, "legacy.vectors")
		require.NoError(t, os.WriteFile(path, []byte{127, 0, 0, 0, 0, 127, 0, 0}, 0644))

		l, err := Open(path, 4)
		require.NoError(t, err)
		defer l.Close()

		assert.Equal(t, quantization.DefaultScale, l.Scale())
		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = os.Stat(path + HeaderSuffix)
		assert.NoError(t, err)
	})

	t.Run("partial record", func(t *testing.T) {
		path := filepath.Join(dir, "torn.vectors")
		require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4, 5}, 0644))

		_, err := Open(path, 4)
		assert.ErrorIs(t, err, ErrHeaderMismatch)
	})
}

func TestLog_TornRecord(t *testing.T) {
	l, path := openTestLog(t, 4)
	require.NoError(t, l.Append([]float32{1, 0, 0, 0}))

	// Simulate a crash in the middle of a write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{9, 9})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := l.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, 1, recs.Len())

	dropped, err := l.TrimPartial()
	require.NoError(t, err)
	assert.Equal(t, int64(2), dropped)

	size, err := l.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	dropped, err = l.TrimPartial()
	require.NoError(t, err)
	assert.Zero(t, dropped)
}

func TestLog_Truncate(t *testing.T) {
	l, _ := openTestLog(t, 2)
	for range 5 {
		require.NoError(t, l.Append([]float32{1, 1}))
	}
	require.NoError(t, l.Truncate(2))

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Error(t, l.Truncate(-1))

	// Appends continue at the new end.
	require.NoError(t, l.Append([]float32{-1, 0}))
	recs, err := l.ReadAll()
	require.NoError(t, err)
	require.Equal(t, 3, recs.Len())
	assert.Equal(t, []int8{-127, 0}, toInt8(recs.At(2)))
}

func TestLog_FaultInjection(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	l, path := openTestLog(t, 4, func(o *Options) { o.FileSystem = ffs })
	require.NoError(t, l.Append([]float32{1, 0, 0, 0}))

	t.Run("short write rolls back", func(t *testing.T) {
		ffs.AddRule(filepath.Base(path), fs.Fault{FailAfterBytes: 0, ShortWrite: true})
		defer ffs.ClearRules()

		err := l.Append([]float32{0, 1, 0, 0})
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, fs.ErrInjected)

		size, err := l.Size()
		require.NoError(t, err)
		assert.Equal(t, int64(4), size)
	})

	t.Run("sync failure rolls back", func(t *testing.T) {
		ffs.AddRule(filepath.Base(path), fs.Fault{FailAfterBytes: -1, FailOnSync: true})
		defer ffs.ClearRules()

		assert.ErrorIs(t, l.Append([]float32{0, 1, 0, 0}), ErrIO)

		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("async skips sync", func(t *testing.T) {
		l.opts.Durability = DurabilityAsync
		defer func() { l.opts.Durability = DurabilitySync }()

		ffs.AddRule(filepath.Base(path), fs.Fault{FailAfterBytes: -1, FailOnSync: true})
		defer ffs.ClearRules()

		require.NoError(t, l.Append([]float32{0, 1, 0, 0}))
		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("open failure", func(t *testing.T) {
		ffs.AddRule("other.vectors", fs.Fault{FailOnOpen: true})
		defer ffs.ClearRules()

		_, err := Open(filepath.Join(t.TempDir(), "other.vectors"), 4, func(o *Options) { o.FileSystem = ffs })
		assert.ErrorIs(t, err, ErrIO)
	})
}

func TestLog_Locked(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("advisory locking not supported")
	}

	l, path := openTestLog(t, 4)
	_, err := Open(path, 4)
	assert.ErrorIs(t, err, ErrLocked)

	// Lock disabled for read-only tooling.
	l2, err := Open(path, 4, func(o *Options) { o.Lock = false })
	require.NoError(t, err)
	require.NoError(t, l2.Close())

	require.NoError(t, l.Close())
	l3, err := Open(path, 4)
	require.NoError(t, err)
	require.NoError(t, l3.Close())
}

func TestLog_Closed(t *testing.T) {
	l, _ := openTestLog(t, 4)
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.Append([]float32{1, 0, 0, 0}), ErrClosed)
	_, err := l.Len()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.ReadAll()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.Truncate(0), ErrClosed)
}

func TestOpen_InvalidDimension(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x"), 0)
	assert.Error(t, err)
}

func toInt8(b []byte) []int8 {
	out := make([]int8, len(b))
	for i, v := range b {
		out[i] = int8(v)
	}
	return out
}
