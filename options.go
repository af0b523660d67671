package revsearch

import (
	"log/slog"

	"github.com/hupe1980/revsearch/codec"
	"github.com/hupe1980/revsearch/internal/fs"
	"github.com/hupe1980/revsearch/internal/vectorlog"
)

// Durability controls whether inserts are fsync'd before returning.
type Durability = vectorlog.Durability

const (
	// DurabilityAsync relies on the OS page cache.
	DurabilityAsync = vectorlog.DurabilityAsync
	// DurabilitySync calls fsync after every append.
	DurabilitySync = vectorlog.DurabilitySync
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	scale            float32
	durability       Durability
	fs               fs.FileSystem
	repair           bool
	lock             bool
}

func defaultOptions() options {
	return options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		durability:       DurabilitySync,
		fs:               fs.Default,
		repair:           true,
		lock:             true,
	}
}

// Option configures Open.
type Option func(*options)

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// WithCodec configures the codec used for metadata lines.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel installs a text logger to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector. If nil, metrics are disabled.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithScale sets the quantization scale of a new store. An existing store must
// be reopened with its persisted scale or with no WithScale at all.
func WithScale(scale float32) Option {
	return func(o *options) {
		o.scale = scale
	}
}

// WithDurability sets the fsync policy of both logs.
func WithDurability(d Durability) Option {
	return func(o *options) {
		o.durability = d
	}
}

// WithFileSystem replaces the file system, e.g. with fs.FaultyFS in tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithRepair controls reconciliation on open. When enabled (the default),
// torn trailing writes are trimmed and the longer log is truncated to the
// length of the shorter one. When disabled, Open fails with ErrInconsistent
// instead.
func WithRepair(enabled bool) Option {
	return func(o *options) {
		o.repair = enabled
	}
}

// WithLock controls the advisory single-writer lock on the vector log.
func WithLock(enabled bool) Option {
	return func(o *options) {
		o.lock = enabled
	}
}
