//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package vectorlog

import "github.com/hupe1980/revsearch/internal/fs"

func lockFile(fs.File) error { return nil }

func unlockFile(fs.File) error { return nil }
