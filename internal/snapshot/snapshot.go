// Package snapshot exports a consistent copy of a review store to a blob
// store and restores it into a directory.
//
// A snapshot named N consists of one compressed blob per store file under
// N/ and a JSON manifest N/manifest.json carrying sizes and CRC32C checksums
// of the uncompressed files. The manifest is written last, so a snapshot
// without one is incomplete and ignored by List.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/blobstore"
	"github.com/hupe1980/revsearch/codec"
	"github.com/hupe1980/revsearch/internal/fs"
	"github.com/hupe1980/revsearch/internal/hash"
)

// Options configures Export and Restore.
type Options struct {
	Compression Compression
	// Concurrency bounds the files transferred in parallel.
	Concurrency int
	// Overwrite allows Export to replace an existing snapshot and Restore to
	// replace existing store files.
	Overwrite  bool
	FileSystem fs.FileSystem
	Logger     *revsearch.Logger
	Now        func() time.Time
}

// DefaultOptions returns the defaults: zstd, three files in parallel.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
		Concurrency: 3,
		FileSystem:  fs.Default,
		Logger:      revsearch.NoopLogger(),
		Now:         time.Now,
	}
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Compression == "" {
		opts.Compression = CompressionZstd
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.Logger == nil {
		opts.Logger = revsearch.NoopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// Export writes a snapshot of store named name to dst. Inserts are blocked
// while the files are copied.
func Export(ctx context.Context, store *revsearch.Store, dst blobstore.BlobStore, name string, optFns ...func(o *Options)) (*Manifest, error) {
	opts := applyOptions(optFns)
	logger := opts.Logger.WithComponent("snapshot")

	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, err := newWriter(opts.Compression, io.Discard); err != nil {
		return nil, err
	}
	if !opts.Overwrite {
		existing, err := dst.List(ctx, name+"/")
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrExists, name)
		}
	}

	start := opts.Now()
	m := &Manifest{
		Version:     CurrentVersion,
		Name:        name,
		CreatedAt:   start.UTC(),
		Compression: opts.Compression,
		Codec:       codec.Default.Name(),
		Dimension:   store.Dimension(),
		Scale:       store.Scale(),
	}

	err := store.Snapshot(ctx, func(ctx context.Context, files []revsearch.SnapshotFile) error {
		m.Files = make([]FileInfo, len(files))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i, f := range files {
			g.Go(func() error {
				info, err := exportFile(gctx, opts, dst, name, f)
				if err != nil {
					return fmt.Errorf("export %s: %w", f.Name, err)
				}
				m.Files[i] = info
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, f := range files {
			if f.Name == revsearch.VectorFile {
				m.Count = int(f.Size / int64(m.Dimension))
			}
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "snapshot export failed", "name", name, "error", err)
		return nil, err
	}

	if err := writeManifest(ctx, dst, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoContext(ctx, "snapshot exported",
		"name", name,
		"count", m.Count,
		"compression", string(m.Compression),
		"size", m.Size(),
		"stored_size", m.StoredSize(),
		"duration", opts.Now().Sub(start),
	)
	return m, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func exportFile(ctx context.Context, opts Options, dst blobstore.BlobStore, name string, f revsearch.SnapshotFile) (info FileInfo, err error) {
	src, err := opts.FileSystem.OpenFile(f.Path, os.O_RDONLY, 0)
	if err != nil {
		return FileInfo{}, err
	}
	defer func() { _ = src.Close() }()

	blobName := path.Join(name, f.Name+opts.Compression.Ext())
	wb, err := dst.Create(ctx, blobName)
	if err != nil {
		return FileInfo{}, err
	}
	defer func() {
		if err != nil {
			_ = blobstore.Abort(wb)
		}
	}()

	cw := &countingWriter{w: wb}
	zw, err := newWriter(opts.Compression, cw)
	if err != nil {
		return FileInfo{}, err
	}

	h := hash.NewCRC32C()
	n, err := io.Copy(zw, io.TeeReader(io.NewSectionReader(src, 0, f.Size), h))
	if err != nil {
		return FileInfo{}, err
	}
	if n != f.Size {
		return FileInfo{}, fmt.Errorf("short read: %d of %d bytes", n, f.Size)
	}
	if err := zw.Close(); err != nil {
		return FileInfo{}, err
	}
	if err := wb.Close(); err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		Name:       f.Name,
		Blob:       blobName,
		Size:       f.Size,
		StoredSize: cw.n,
		CRC32C:     h.Sum32(),
	}, nil
}

// Restore downloads snapshot name from src into dir. Files are written to
// temporary names, verified against the manifest and renamed into place only
// after every file checked out. Restore holds the writer lock of dir and
// returns revsearch.ErrLocked while a store is open on it.
func Restore(ctx context.Context, src blobstore.BlobStore, name, dir string, optFns ...func(o *Options)) (*Manifest, error) {
	opts := applyOptions(optFns)
	logger := opts.Logger.WithComponent("snapshot")
	fsys := opts.FileSystem
	start := opts.Now()

	m, err := ReadManifest(ctx, src, name)
	if err != nil {
		return nil, err
	}
	if _, ok := codec.ByName(m.Codec); !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, m.Codec)
	}

	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	lock, err := revsearch.LockDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if !opts.Overwrite {
		for _, f := range m.Files {
			ok, err := fs.Exists(fsys, filepath.Join(dir, f.Name))
			if err != nil {
				return nil, err
			}
			if ok {
				return nil, fmt.Errorf("%w: %s", ErrExists, filepath.Join(dir, f.Name))
			}
		}
	}

	tmp := make([]string, len(m.Files))
	cleanup := func() {
		for _, p := range tmp {
			if p != "" {
				_ = fsys.Remove(p)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, f := range m.Files {
		tmp[i] = filepath.Join(dir, f.Name+".restore")
		g.Go(func() error {
			if err := restoreFile(gctx, fsys, src, m.Compression, f, tmp[i]); err != nil {
				return fmt.Errorf("restore %s: %w", f.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cleanup()
		logger.ErrorContext(ctx, "snapshot restore failed", "name", name, "error", err)
		return nil, err
	}

	for i, f := range m.Files {
		if err := fsys.Rename(tmp[i], filepath.Join(dir, f.Name)); err != nil {
			cleanup()
			return nil, err
		}
		tmp[i] = ""
	}

	logger.InfoContext(ctx, "snapshot restored",
		"name", name,
		"dir", dir,
		"count", m.Count,
		"duration", opts.Now().Sub(start),
	)
	return m, nil
}

func restoreFile(ctx context.Context, fsys fs.FileSystem, src blobstore.BlobStore, c Compression, f FileInfo, target string) error {
	blob, err := src.Open(ctx, f.Blob)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: missing blob %s", ErrCorrupt, f.Blob)
		}
		return err
	}
	defer func() { _ = blob.Close() }()

	var body io.Reader = eofReader{}
	if blob.Size() > 0 {
		rc, err := blob.ReadRange(ctx, 0, blob.Size())
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		body = rc
	}

	zr, err := newReader(c, body)
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()

	out, err := fsys.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	h := hash.NewCRC32C()
	n, err := io.Copy(io.MultiWriter(out, h), zr)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if n != f.Size || h.Sum32() != f.CRC32C {
		return fmt.Errorf("%w: %s: got %d bytes crc %08x, want %d bytes crc %08x",
			ErrChecksum, f.Name, n, h.Sum32(), f.Size, f.CRC32C)
	}
	return nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// IsNotFound reports whether err means a snapshot is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
