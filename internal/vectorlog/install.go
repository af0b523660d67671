package vectorlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/revsearch/internal/fs"
)

// InstallSuffix names the marker that records an install in progress.
const InstallSuffix = ".install"

// Install replaces the log at dst, data file and header, with the closed log
// at src in the same directory. The caller holds the lock of dst.
//
// The marker written before the first rename is the commit point: once it
// exists, CompleteInstall (run by Open) finishes whatever renames a crash
// left undone, so dst never ends up with data and header from different logs.
func Install(fsys fs.FileSystem, src, dst string) error {
	if filepath.Dir(src) != filepath.Dir(dst) {
		return fmt.Errorf("vectorlog: install %s: source outside %s", src, filepath.Dir(dst))
	}
	for _, p := range []string{src, src + HeaderSuffix} {
		if _, err := fsys.Stat(p); err != nil {
			return ioErr("install", err)
		}
	}

	if err := writeMarker(fsys, dst+InstallSuffix, filepath.Base(src)); err != nil {
		return err
	}
	return CompleteInstall(fsys, dst)
}

// CompleteInstall finishes an install into dst interrupted after its marker
// was written. Without a marker it does nothing.
func CompleteInstall(fsys fs.FileSystem, dst string) error {
	marker := dst + InstallSuffix
	data, err := fsys.ReadFile(marker)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ioErr("read install marker", err)
	}

	base := strings.TrimSpace(string(data))
	if base == "" || base != filepath.Base(base) || base == "." || base == ".." {
		return fmt.Errorf("%w: install marker %s names %q", ErrCorruptHeader, marker, base)
	}
	src := filepath.Join(filepath.Dir(dst), base)

	// Data first, then header. A part that is already in place is skipped.
	for _, suffix := range []string{"", HeaderSuffix} {
		if err := fsys.Rename(src+suffix, dst+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ioErr("install", err)
		}
	}
	if err := fsys.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioErr("remove install marker", err)
	}
	return nil
}

func writeMarker(fsys fs.FileSystem, path, content string) error {
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return ioErr("write install marker", err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		_ = f.Close()
		return ioErr("write install marker", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return ioErr("sync install marker", err)
	}
	if err := f.Close(); err != nil {
		return ioErr("close install marker", err)
	}
	return nil
}
