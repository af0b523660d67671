package revsearch

import (
	"path/filepath"

	"github.com/hupe1980/revsearch/internal/fs"
	"github.com/hupe1980/revsearch/internal/vectorlog"
)

// LockFile is the advisory lock file an open Store holds in its directory.
const LockFile = VectorFile + vectorlog.LockSuffix

// DirLock is the writer lock of a store directory held outside a Store.
type DirLock struct {
	lock *vectorlog.FileLock
}

// LockDir takes the writer lock of the store in dir for tools that replace
// store files, and finishes a vector log replacement a crash interrupted.
// It fails with ErrLocked while a Store is open on dir. A nil fsys uses the
// local file system.
func LockDir(fsys fs.FileSystem, dir string) (*DirLock, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	path := filepath.Join(dir, VectorFile)

	l, err := vectorlog.AcquireLock(fsys, path)
	if err != nil {
		return nil, translateError(err)
	}
	if err := vectorlog.CompleteInstall(fsys, path); err != nil {
		_ = l.Release()
		return nil, translateError(err)
	}
	return &DirLock{lock: l}, nil
}

// Unlock releases the lock.
func (d *DirLock) Unlock() error {
	return translateError(d.lock.Release())
}
