package vectorlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/revsearch/internal/fs"
	"github.com/hupe1980/revsearch/quantization"
)

// Durability controls the durability guarantees of Append.
type Durability int

const (
	// DurabilityAsync relies on the OS page cache.
	DurabilityAsync Durability = iota
	// DurabilitySync calls fsync after every append.
	DurabilitySync
)

func (d Durability) String() string {
	switch d {
	case DurabilityAsync:
		return "async"
	case DurabilitySync:
		return "sync"
	default:
		return fmt.Sprintf("Durability(%d)", int(d))
	}
}

// Options configures a vector log.
type Options struct {
	FileSystem fs.FileSystem
	// Scale of the int8 codec. Zero adopts the persisted scale, or
	// quantization.DefaultScale for a new log.
	Scale      float32
	Durability Durability
	// Lock takes the advisory exclusive lock (path + LockSuffix) for the
	// life of the log and completes an interrupted Install.
	Lock bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		FileSystem: fs.Default,
		Durability: DurabilitySync,
		Lock:       true,
	}
}

// Log is an append-only log of int8-quantized vectors.
type Log struct {
	mu     sync.Mutex
	fsys   fs.FileSystem
	file   fs.File
	path   string
	dim    int
	codec  *quantization.Int8Codec
	opts   Options
	lock   *FileLock
	buf    []byte
	closed bool
}

// Open opens or creates the vector log at path for vectors of length dim.
func Open(path string, dim int, optFns ...func(o *Options)) (*Log, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorlog: invalid dimension %d", dim)
	}

	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	fsys := opts.FileSystem

	var lock *FileLock
	if opts.Lock {
		var err error
		if lock, err = AcquireLock(fsys, path); err != nil {
			return nil, err
		}
		if err := CompleteInstall(fsys, path); err != nil {
			_ = lock.Release()
			return nil, err
		}
	}

	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		_ = lock.Release()
		return nil, ioErr("open", err)
	}

	scale, err := loadHeader(fsys, f, path, dim, opts.Scale)
	if err != nil {
		_ = f.Close()
		_ = lock.Release()
		return nil, err
	}

	return &Log{
		fsys:  fsys,
		file:  f,
		path:  path,
		dim:   dim,
		codec: quantization.NewInt8Codec(scale),
		opts:  opts,
		lock:  lock,
		buf:   make([]byte, dim),
	}, nil
}

// loadHeader validates the sidecar header, writing it when absent, and
// returns the effective scale.
func loadHeader(fsys fs.FileSystem, f fs.File, path string, dim int, scale float32) (float32, error) {
	hdrPath := path + HeaderSuffix

	data, err := fsys.ReadFile(hdrPath)
	switch {
	case err == nil:
		h, err := DecodeHeader(data)
		if err != nil {
			return 0, err
		}
		if int(h.Dim) != dim {
			return 0, fmt.Errorf("%w: dimension %d (log has %d)", ErrHeaderMismatch, dim, h.Dim)
		}
		if scale != 0 && scale != h.Scale {
			return 0, fmt.Errorf("%w: scale %g (log has %g)", ErrHeaderMismatch, scale, h.Scale)
		}
		return h.Scale, nil
	case !errors.Is(err, os.ErrNotExist):
		return 0, ioErr("read header", err)
	}

	// No sidecar: a new log, or a headerless one written before the sidecar existed.
	info, err := f.Stat()
	if err != nil {
		return 0, ioErr("stat", err)
	}
	if info.Size()%int64(dim) != 0 {
		return 0, fmt.Errorf("%w: headerless log of %d bytes is not a multiple of dimension %d",
			ErrHeaderMismatch, info.Size(), dim)
	}
	if !(scale > 0) {
		scale = quantization.DefaultScale
	}

	h := Header{Version: headerVersion, Dim: uint32(dim), Scale: scale}
	tmp := hdrPath + ".tmp"
	if err := fsys.WriteFile(tmp, h.Encode(), 0644); err != nil {
		return 0, ioErr("write header", err)
	}
	if err := fsys.Rename(tmp, hdrPath); err != nil {
		return 0, ioErr("rename header", err)
	}
	return scale, nil
}

// Append quantizes v and appends it as one record.
//
// A vector of the wrong length is rejected with *ErrDimensionMismatch and the
// log is unchanged. On a failed or short write the log is truncated back to
// its previous length.
func (l *Log) Append(v []float32) error {
	if len(v) != l.dim {
		return &ErrDimensionMismatch{Expected: l.dim, Actual: len(v)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	info, err := l.file.Stat()
	if err != nil {
		return ioErr("stat", err)
	}
	prev := info.Size()

	l.codec.EncodeInto(l.buf, v)

	n, err := l.file.Write(l.buf)
	if err == nil && n != len(l.buf) {
		err = io.ErrShortWrite
	}
	if err == nil && l.opts.Durability == DurabilitySync {
		err = l.file.Sync()
	}
	if err != nil {
		if terr := l.file.Truncate(prev); terr != nil {
			return ioErr("append", errors.Join(err, terr))
		}
		return ioErr("append", err)
	}
	return nil
}

// Len returns the number of complete records. It is computed from the file
// size on every call.
func (l *Log) Len() (int, error) {
	size, err := l.Size()
	if err != nil {
		return 0, err
	}
	return int(size / int64(l.dim)), nil
}

// Size returns the data file size in bytes, including a torn trailing record.
func (l *Log) Size() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	info, err := l.file.Stat()
	if err != nil {
		return 0, ioErr("stat", err)
	}
	return info.Size(), nil
}

// ReadAll reads every complete record into memory. A torn trailing record is
// ignored.
func (l *Log) ReadAll() (*Records, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	info, err := l.file.Stat()
	if err != nil {
		return nil, ioErr("stat", err)
	}

	n := info.Size() / int64(l.dim)
	data := make([]byte, n*int64(l.dim))
	if len(data) > 0 {
		if _, err := l.file.ReadAt(data, 0); err != nil && !(errors.Is(err, io.EOF)) {
			return nil, ioErr("read", err)
		}
	}
	return &Records{data: data, dim: l.dim}, nil
}

// Truncate shrinks the log to n records.
func (l *Log) Truncate(n int) error {
	if n < 0 {
		return fmt.Errorf("vectorlog: invalid record count %d", n)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	return l.truncate(int64(n) * int64(l.dim))
}

// TrimPartial removes a torn trailing record and returns the number of
// bytes dropped.
func (l *Log) TrimPartial() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	info, err := l.file.Stat()
	if err != nil {
		return 0, ioErr("stat", err)
	}
	torn := info.Size() % int64(l.dim)
	if torn == 0 {
		return 0, nil
	}
	if err := l.truncate(info.Size() - torn); err != nil {
		return 0, err
	}
	return torn, nil
}

func (l *Log) truncate(size int64) error {
	if err := l.file.Truncate(size); err != nil {
		return ioErr("truncate", err)
	}
	if l.opts.Durability == DurabilitySync {
		if err := l.file.Sync(); err != nil {
			return ioErr("sync", err)
		}
	}
	return nil
}

// Sync commits the data file to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if err := l.file.Sync(); err != nil {
		return ioErr("sync", err)
	}
	return nil
}

// Dim returns the vector dimension.
func (l *Log) Dim() int { return l.dim }

// Scale returns the codec scale.
func (l *Log) Scale() float32 { return l.codec.Scale() }

// Codec returns the codec used for records.
func (l *Log) Codec() *quantization.Int8Codec { return l.codec }

// Path returns the data file path.
func (l *Log) Path() string { return l.path }

// HeaderPath returns the sidecar header path.
func (l *Log) HeaderPath() string { return l.path + HeaderSuffix }

// Close releases the lock and closes the data file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.closed = true

	var errs []error
	if err := l.file.Close(); err != nil {
		errs = append(errs, ioErr("close", err))
	}
	if err := l.lock.Release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Records is an in-memory snapshot of the log.
type Records struct {
	data []byte
	dim  int
}

// NewRecords wraps raw record bytes. Trailing bytes that do not form a whole
// record are ignored.
func NewRecords(data []byte, dim int) *Records {
	n := len(data) / dim
	return &Records{data: data[:n*dim], dim: dim}
}

// Len returns the number of records.
func (r *Records) Len() int {
	if r == nil || r.dim == 0 {
		return 0
	}
	return len(r.data) / r.dim
}

// Dim returns the record width.
func (r *Records) Dim() int { return r.dim }

// At returns the codes of record i. The slice aliases the snapshot.
func (r *Records) At(i int) []byte {
	off := i * r.dim
	return r.data[off : off+r.dim : off+r.dim]
}
