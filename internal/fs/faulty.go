package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the error returned by FaultyFS when a rule fires and the rule
// carries no error of its own.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailAfterBytes int64 // Fail writes once this many bytes were written to the file. -1 disables.
	ShortWrite     bool  // Write half of the buffer before failing instead of nothing.
	FailOnOpen     bool
	FailOnSync     bool
	FailOnRead     bool
	FailOnTruncate bool
	Err            error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS    FileSystem
	mu    sync.Mutex
	rules map[string]Fault // Filename substring -> Fault
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{
		FS:    fsys,
		rules: make(map[string]Fault),
	}
}

// AddRule adds a fault injection rule for files whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Longest pattern wins so that "x.hdr" beats "x".
	var (
		best    Fault
		bestLen = -1
	)
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) && len(pattern) > bestLen {
			best, bestLen = rule, len(pattern)
		}
	}
	if bestLen < 0 {
		return Fault{FailAfterBytes: -1}, false
	}
	return best, true
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault, _ := f.match(name)
	if fault.FailOnOpen {
		return nil, fault.err()
	}
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f, name: name}, nil
}

func (f *FaultyFS) ReadFile(name string) ([]byte, error) {
	if fault, ok := f.match(name); ok && fault.FailOnRead {
		return nil, fault.err()
	}
	return f.FS.ReadFile(name)
}

func (f *FaultyFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	if fault, ok := f.match(name); ok && fault.FailAfterBytes >= 0 && int64(len(data)) > fault.FailAfterBytes {
		return fault.err()
	}
	return f.FS.WriteFile(name, data, perm)
}

func (f *FaultyFS) Remove(name string) error { return f.FS.Remove(name) }

func (f *FaultyFS) Rename(oldpath, newpath string) error { return f.FS.Rename(oldpath, newpath) }

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.FS.MkdirAll(path, perm) }

func (f *FaultyFS) Truncate(name string, size int64) error {
	if fault, ok := f.match(name); ok && fault.FailOnTruncate {
		return fault.err()
	}
	return f.FS.Truncate(name, size)
}

// faultyFile re-evaluates the rules on every call so tests can arm a fault
// after a file has been opened.
type faultyFile struct {
	File
	fs      *FaultyFS
	name    string
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	fault, ok := ff.fs.match(ff.name)
	if ok && fault.FailAfterBytes >= 0 && ff.written+int64(len(p)) > fault.FailAfterBytes {
		if fault.ShortWrite && len(p) > 1 {
			n, err := ff.File.Write(p[:len(p)/2])
			ff.written += int64(n)
			if err != nil {
				return n, err
			}
			return n, fault.err()
		}
		return 0, fault.err()
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailOnRead {
		return 0, fault.err()
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailOnRead {
		return 0, fault.err()
	}
	return ff.File.Read(p)
}

func (ff *faultyFile) Sync() error {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailOnSync {
		return fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Truncate(size int64) error {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailOnTruncate {
		return fault.err()
	}
	return ff.File.Truncate(size)
}

// Fd hides the descriptor so advisory locking is skipped for wrapped files.
func (ff *faultyFile) Fd() uintptr { return ^uintptr(0) }
