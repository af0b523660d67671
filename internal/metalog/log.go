package metalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/revsearch/codec"
	"github.com/hupe1980/revsearch/internal/fs"
)

var (
	// ErrOutOfRange is returned for a position past the last record.
	ErrOutOfRange = errors.New("metalog: index out of range")

	// ErrEncoding wraps codec failures.
	ErrEncoding = errors.New("metalog: encoding error")

	// ErrIO wraps every failure of the underlying file.
	ErrIO = errors.New("metalog: i/o error")

	// ErrTornTail is returned by Append while an unterminated trailing line exists.
	ErrTornTail = errors.New("metalog: torn trailing line")

	// ErrClosed is returned for operations on a closed log.
	ErrClosed = errors.New("metalog: closed")
)

// Options configures a metadata log.
type Options struct {
	FileSystem fs.FileSystem
	Codec      codec.Codec
	// Sync calls fsync after every append.
	Sync bool
}

// Log is an append-only JSON-lines log of T.
type Log[T any] struct {
	mu      sync.RWMutex
	fsys    fs.FileSystem
	file    fs.File
	path    string
	codec   codec.Codec
	sync    bool
	offsets []int64 // start offset of every complete line
	end     int64   // end of the last complete line
	torn    int64   // bytes after end
	closed  bool
}

// Open opens or creates the metadata log at path and indexes its lines.
func Open[T any](path string, optFns ...func(o *Options)) (*Log[T], error) {
	opts := Options{FileSystem: fs.Default, Codec: codec.Default, Sync: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	f, err := opts.FileSystem.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, ioErr("open", err)
	}

	l := &Log[T]{
		fsys:  opts.FileSystem,
		file:  f,
		path:  path,
		codec: opts.Codec,
		sync:  opts.Sync,
	}
	if err := l.index(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log[T]) index() error {
	info, err := l.file.Stat()
	if err != nil {
		return ioErr("stat", err)
	}
	size := info.Size()

	r := bufio.NewReaderSize(io.NewSectionReader(l.file, 0, size), 64*1024)
	var off, lineStart int64
	for {
		chunk, err := r.ReadSlice('\n')
		off += int64(len(chunk))
		if err == nil {
			l.offsets = append(l.offsets, lineStart)
			lineStart = off
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		return ioErr("index", err)
	}

	l.end = lineStart
	l.torn = size - lineStart
	return nil
}

// lineEnd returns the offset of the newline terminating line i.
func (l *Log[T]) lineEnd(i int) int64 {
	if i+1 < len(l.offsets) {
		return l.offsets[i+1] - 1
	}
	return l.end - 1
}

// Append encodes v and writes it as one line.
func (l *Log[T]) Append(v T) error {
	b, err := codec.Line(l.codec, v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.torn > 0 {
		return ErrTornTail
	}

	n, err := l.file.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err == nil && l.sync {
		err = l.file.Sync()
	}
	if err != nil {
		if terr := l.file.Truncate(l.end); terr != nil {
			// The partial line stays on disk; refuse further appends.
			l.torn = int64(n)
			return ioErr("append", errors.Join(err, terr))
		}
		return ioErr("append", err)
	}

	l.offsets = append(l.offsets, l.end)
	l.end += int64(len(b))
	return nil
}

// Len returns the number of complete lines.
func (l *Log[T]) Len() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, ErrClosed
	}
	return len(l.offsets), nil
}

// TornBytes returns the size of an unterminated trailing line.
func (l *Log[T]) TornBytes() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.torn
}

// Get decodes the i-th line.
func (l *Log[T]) Get(i int) (T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var zero T
	if l.closed {
		return zero, ErrClosed
	}
	return l.get(i)
}

func (l *Log[T]) get(i int) (T, error) {
	var v T
	if i < 0 || i >= len(l.offsets) {
		return v, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, i, len(l.offsets))
	}
	start, end := l.offsets[i], l.lineEnd(i)
	buf := make([]byte, end-start)
	if len(buf) > 0 {
		if _, err := l.file.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
			return v, ioErr("read", err)
		}
	}
	if err := l.codec.Unmarshal(buf, &v); err != nil {
		return v, fmt.Errorf("%w: line %d: %w", ErrEncoding, i, err)
	}
	return v, nil
}

// GetMany decodes the lines at the given positions, in order.
func (l *Log[T]) GetMany(ids []uint64) ([]T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrClosed
	}
	out := make([]T, len(ids))
	for j, id := range ids {
		if id >= uint64(len(l.offsets)) {
			return nil, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, id, len(l.offsets))
		}
		v, err := l.get(int(id))
		if err != nil {
			return nil, err
		}
		out[j] = v
	}
	return out, nil
}

// Scan decodes every complete line in order. A non-nil error from fn stops
// the scan and is returned.
func (l *Log[T]) Scan(fn func(i int, v T) error) error {
	return l.ScanRaw(func(i int, line []byte) error {
		var v T
		if err := l.codec.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrEncoding, i, err)
		}
		return fn(i, v)
	})
}

// ScanRaw passes every complete line without its newline. The slice is only
// valid during the call.
func (l *Log[T]) ScanRaw(fn func(i int, line []byte) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}

	r := bufio.NewReaderSize(io.NewSectionReader(l.file, 0, l.end), 64*1024)
	for i := range l.offsets {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return ioErr("scan", err)
		}
		if err := fn(i, line[:len(line)-1]); err != nil {
			return err
		}
	}
	return nil
}

// Truncate shrinks the log to n lines and drops a torn tail.
func (l *Log[T]) Truncate(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if n < 0 || n > len(l.offsets) {
		return fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, n, len(l.offsets))
	}

	size := l.end
	if n < len(l.offsets) {
		size = l.offsets[n]
	}
	if err := l.file.Truncate(size); err != nil {
		return ioErr("truncate", err)
	}
	if l.sync {
		if err := l.file.Sync(); err != nil {
			return ioErr("sync", err)
		}
	}
	l.offsets = l.offsets[:n]
	l.end = size
	l.torn = 0
	return nil
}

// TrimPartial drops an unterminated trailing line and returns its size.
func (l *Log[T]) TrimPartial() (int64, error) {
	l.mu.RLock()
	torn, n := l.torn, len(l.offsets)
	l.mu.RUnlock()

	if torn == 0 {
		return 0, nil
	}
	if err := l.Truncate(n); err != nil {
		return 0, err
	}
	return torn, nil
}

// Size returns the file size in bytes, including a torn tail.
func (l *Log[T]) Size() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.end + l.torn
}

// Path returns the file path.
func (l *Log[T]) Path() string { return l.path }

// Codec returns the codec used for lines.
func (l *Log[T]) Codec() codec.Codec { return l.codec }

// Close closes the file.
func (l *Log[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.closed = true
	if err := l.file.Close(); err != nil {
		return ioErr("close", err)
	}
	return nil
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
