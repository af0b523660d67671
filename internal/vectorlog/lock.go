package vectorlog

import (
	"errors"
	"os"

	"github.com/hupe1980/revsearch/internal/fs"
)

// LockSuffix names the lock file kept next to the data file. The lock lives
// on its own file so that replacing the data file by rename does not drop it.
const LockSuffix = ".lock"

// FileLock is the single-writer lock of a vector log.
type FileLock struct {
	f fs.File
}

// AcquireLock takes the exclusive lock of the log at path without opening
// the log. It fails with ErrLocked while an open Log or another FileLock
// holds it.
func AcquireLock(fsys fs.FileSystem, path string) (*FileLock, error) {
	f, err := fsys.OpenFile(path+LockSuffix, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, ioErr("open lock", err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileLock{f: f}, nil
}

// Release drops the lock. The lock file stays in place.
func (l *FileLock) Release() error {
	if l == nil {
		return nil
	}
	err := unlockFile(l.f)
	if cerr := l.f.Close(); cerr != nil {
		err = errors.Join(err, ioErr("close lock", cerr))
	}
	return err
}
