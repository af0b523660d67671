package revsearch

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the slog logger used by the store and the services built on it.
// Its Log methods fix the attribute names that appear in store events.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		return NewTextLogger(slog.LevelInfo)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger logs text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewWriterLogger(os.Stderr, "text", level)
}

// NewWriterLogger logs to w in format "json" or, for anything else, "text".
func NewWriterLogger(w io.Writer, format string, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
	}
	return &Logger{Logger: slog.New(slog.NewTextHandler(w, opts))}
}

// NoopLogger drops every record.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithDimension tags records with the store's embedding dimension.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{Logger: l.Logger.With("dimension", dim)}
}

// WithComponent tags records with the subsystem that emitted them.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// LogOpen reports the outcome of opening the store in dir with count reviews.
func (l *Logger) LogOpen(ctx context.Context, dir string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open store", "dir", dir, "error", err)
		return
	}
	l.InfoContext(ctx, "store opened", "dir", dir, "count", count)
}

// LogInsert reports a single insert. Successes are logged at debug level.
func (l *Logger) LogInsert(ctx context.Context, id uint64, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert review", "dimension", dimension, "error", err)
		return
	}
	l.DebugContext(ctx, "review inserted", "id", id)
}

// LogBatchInsert reports an InsertBatch, warning when some reviews failed.
func (l *Logger) LogBatchInsert(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch partially inserted",
			"inserted", count-failed,
			"failed", failed,
		)
		return
	}
	l.DebugContext(ctx, "batch inserted", "count", count)
}

// LogSearch reports a search for k results that returned found hits.
func (l *Logger) LogSearch(ctx context.Context, k, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search", "top_k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "search done", "top_k", k, "found", found)
}

// LogRepair reports what Open cut from the logs.
func (l *Logger) LogRepair(ctx context.Context, r RepairReport) {
	l.WarnContext(ctx, "store repaired",
		"torn_vector_bytes", r.TornVectorBytes,
		"torn_metadata_bytes", r.TornMetadataBytes,
		"dropped_vectors", r.DroppedVectors,
		"dropped_metadata", r.DroppedMetadata,
		"count", r.Count,
	)
}

// LogSnapshot reports handing the files of dir to a snapshot callback.
func (l *Logger) LogSnapshot(ctx context.Context, dir string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot store", "dir", dir, "error", err)
		return
	}
	l.DebugContext(ctx, "store files handed to snapshot", "dir", dir)
}
