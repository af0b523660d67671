// Package indexer rebuilds the vector log of a store from its metadata log.
//
// Reviews are read from reviews.jsonl in batches, embedded in parallel and
// appended in file order to a fresh vector log, which then replaces the old
// one. Line i of the metadata log always ends up as vector i. A rebuild holds
// the store's writer lock throughout, so it fails with revsearch.ErrLocked
// while the store is open.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/codec"
	"github.com/hupe1980/revsearch/embed"
	"github.com/hupe1980/revsearch/internal/fs"
	"github.com/hupe1980/revsearch/internal/metalog"
	"github.com/hupe1980/revsearch/internal/service"
	"github.com/hupe1980/revsearch/internal/vectorlog"
)

const rebuildSuffix = ".rebuild"

// Options configures a rebuild.
type Options struct {
	// BatchSize is the number of metadata lines embedded and appended per round.
	BatchSize int
	// EmbedBatchSize is the number of texts per embedder call.
	EmbedBatchSize int
	// Concurrency bounds the embedder calls in flight.
	Concurrency int
	// Scale of the new log. Zero keeps the current scale, if any.
	Scale      float32
	FileSystem fs.FileSystem
	Codec      codec.Codec
	Logger     *revsearch.Logger
}

// DefaultOptions returns the rebuild defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:      2000,
		EmbedBatchSize: 64,
		Concurrency:    runtime.GOMAXPROCS(0),
		FileSystem:     fs.Default,
		Codec:          codec.Default,
		Logger:         revsearch.NoopLogger(),
	}
}

// Result summarizes a rebuild.
type Result struct {
	Lines    int           `json:"lines"`
	Fallback int           `json:"fallback"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

// Rebuild re-embeds every review in dir and replaces the store's vector log.
// It returns revsearch.ErrLocked when the store is open. Lines that do not
// decode as a review, or whose title and body are blank, are embedded as raw
// JSON text.
func Rebuild(ctx context.Context, dir string, e embed.Embedder, optFns ...func(o *Options)) (*Result, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Logger == nil {
		opts.Logger = revsearch.NoopLogger()
	}
	fsys := opts.FileSystem
	logger := opts.Logger.WithComponent("indexer")

	start := time.Now()
	metaPath := filepath.Join(dir, revsearch.MetadataFile)
	vecPath := filepath.Join(dir, revsearch.VectorFile)
	tmpPath := vecPath + rebuildSuffix

	ok, err := fs.Exists(fsys, metaPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", revsearch.ErrIO, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", revsearch.ErrNotFound, metaPath)
	}

	lock, err := revsearch.LockDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	scale := opts.Scale
	if scale == 0 {
		scale = currentScale(fsys, vecPath)
	}

	meta, err := metalog.Open[revsearch.Review](metaPath, func(o *metalog.Options) {
		o.FileSystem = fsys
		o.Codec = opts.Codec
	})
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer meta.Close()

	for _, p := range []string{tmpPath, tmpPath + vectorlog.HeaderSuffix} {
		if err := fsys.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", revsearch.ErrIO, err)
		}
	}

	out, err := vectorlog.Open(tmpPath, e.Dimension(), func(o *vectorlog.Options) {
		o.FileSystem = fsys
		o.Scale = scale
		o.Durability = vectorlog.DurabilityAsync
	})
	if err != nil {
		return nil, fmt.Errorf("open vector log: %w", err)
	}

	res := &Result{}
	b := &batcher{
		out:    out,
		embed:  e,
		opts:   opts,
		res:    res,
		logger: logger,
	}

	err = meta.ScanRaw(func(i int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.add(line, opts.Codec)
		if len(b.texts) == opts.BatchSize {
			return b.flush(ctx)
		}
		return nil
	})
	if err == nil {
		err = b.flush(ctx)
	}
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fsys.Remove(tmpPath)
		_ = fsys.Remove(tmpPath + vectorlog.HeaderSuffix)
		return nil, err
	}

	if err := vectorlog.Install(fsys, tmpPath, vecPath); err != nil {
		return nil, fmt.Errorf("%w: %w", revsearch.ErrIO, err)
	}

	res.Duration = time.Since(start)
	logger.InfoContext(ctx, "index rebuilt",
		"dir", dir,
		"lines", res.Lines,
		"fallback", res.Fallback,
		"batches", res.Batches,
		"duration", res.Duration,
	)
	return res, nil
}

// currentScale returns the scale persisted for path, or zero.
func currentScale(fsys fs.FileSystem, path string) float32 {
	data, err := fsys.ReadFile(path + vectorlog.HeaderSuffix)
	if err != nil {
		return 0
	}
	h, err := vectorlog.DecodeHeader(data)
	if err != nil {
		return 0
	}
	return h.Scale
}

type batcher struct {
	out    *vectorlog.Log
	embed  embed.Embedder
	opts   Options
	res    *Result
	logger *revsearch.Logger
	texts  []string
}

func (b *batcher) add(line []byte, c codec.Codec) {
	var r revsearch.Review
	text := ""
	if err := c.Unmarshal(line, &r); err == nil {
		text = r.Text()
	}
	if text == "" {
		text = string(line)
		b.res.Fallback++
	}
	b.texts = append(b.texts, text)
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.texts) == 0 {
		return nil
	}
	vecs, err := service.EmbedParallel(ctx, b.embed, b.texts, b.opts.EmbedBatchSize, b.opts.Concurrency)
	if err != nil {
		return err
	}
	for _, v := range vecs {
		if err := b.out.Append(v); err != nil {
			return fmt.Errorf("append vector %d: %w", b.res.Lines, err)
		}
		b.res.Lines++
	}
	b.res.Batches++
	b.texts = b.texts[:0]

	b.logger.DebugContext(ctx, "batch indexed", "lines", b.res.Lines)
	return nil
}
