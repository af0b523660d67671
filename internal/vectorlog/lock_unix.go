//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package vectorlog

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/hupe1980/revsearch/internal/fs"
)

func lockFile(f fs.File) error {
	fd := f.Fd()
	if fd == ^uintptr(0) {
		return nil
	}
	if err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return ioErr("flock", err)
	}
	return nil
}

func unlockFile(f fs.File) error {
	fd := f.Fd()
	if fd == ^uintptr(0) {
		return nil
	}
	return unix.Flock(int(fd), unix.LOCK_UN)
}
