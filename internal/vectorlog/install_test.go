package vectorlog

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/revsearch/internal/fs"
)

func writeLog(t *testing.T, path string, dim int, vecs ...[]float32) {
	t.Helper()
	l, err := Open(path, dim)
	require.NoError(t, err)
	for _, v := range vecs {
		require.NoError(t, l.Append(v))
	}
	require.NoError(t, l.Close())
}

func TestAcquireLock(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("advisory locking not supported")
	}

	l, path := openTestLog(t, 4)

	_, err := AcquireLock(fs.Default, path)
	assert.ErrorIs(t, err, ErrLocked)

	// Replacing the data file keeps the log locked.
	require.NoError(t, os.Rename(path, path+".old"))
	_, err = AcquireLock(fs.Default, path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Close())
	lock, err := AcquireLock(fs.Default, path)
	require.NoError(t, err)

	_, err = Open(path, 4)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())
	var nilLock *FileLock
	assert.NoError(t, nilLock.Release())
}

func TestInstall(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "reviews.vectors")
	src := dst + ".rebuild"

	writeLog(t, dst, 4, []float32{1, 0, 0, 0})
	writeLog(t, src, 2, []float32{1, 0}, []float32{0, 1})

	require.NoError(t, Install(fs.Default, src, dst))

	l, err := Open(dst, 2)
	require.NoError(t, err)
	defer l.Close()

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, p := range []string{src, src + HeaderSuffix, dst + InstallSuffix} {
		_, err := os.Stat(p)
		assert.ErrorIs(t, err, os.ErrNotExist, p)
	}
}

func TestInstall_MissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "reviews.vectors")
	writeLog(t, dst, 4)

	err := Install(fs.Default, dst+".rebuild", dst)
	assert.ErrorIs(t, err, ErrIO)

	_, err = os.Stat(dst + InstallSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = Install(fs.Default, filepath.Join(t.TempDir(), "x"), dst)
	assert.Error(t, err)
}

func TestOpen_CompletesInterruptedInstall(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "reviews.vectors")
	src := dst + ".rebuild"

	writeLog(t, dst, 4, []float32{1, 0, 0, 0})
	writeLog(t, src, 2, []float32{1, 0}, []float32{0, 1}, []float32{1, 1})

	// Crash after the data rename, before the header rename.
	require.NoError(t, writeMarker(fs.Default, dst+InstallSuffix, filepath.Base(src)))
	require.NoError(t, os.Rename(src, dst))

	// The install is finished before the header is checked.
	_, err := Open(dst, 4)
	require.ErrorIs(t, err, ErrHeaderMismatch)

	l, err := Open(dst, 2)
	require.NoError(t, err)
	defer l.Close()

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = os.Stat(dst + InstallSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompleteInstall_BadMarker(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "reviews.vectors")
	require.NoError(t, os.WriteFile(dst+InstallSuffix, []byte("../elsewhere"), 0644))

	assert.ErrorIs(t, CompleteInstall(fs.Default, dst), ErrCorruptHeader)
	assert.NoError(t, CompleteInstall(fs.Default, filepath.Join(t.TempDir(), "none")))
}
