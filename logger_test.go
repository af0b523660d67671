package revsearch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Events(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name  string
		emit  func(l *Logger)
		want  []string
		level string
	}{
		{
			name:  "open",
			emit:  func(l *Logger) { l.LogOpen(ctx, "/data", 7, nil) },
			want:  []string{`"msg":"store opened"`, `"dir":"/data"`, `"count":7`},
			level: "INFO",
		},
		{
			name:  "open failed",
			emit:  func(l *Logger) { l.LogOpen(ctx, "/data", 0, boom) },
			want:  []string{`"msg":"open store"`, `"error":"boom"`},
			level: "ERROR",
		},
		{
			name:  "batch",
			emit:  func(l *Logger) { l.LogBatchInsert(ctx, 4, 0) },
			want:  []string{`"msg":"batch inserted"`, `"count":4`},
			level: "DEBUG",
		},
		{
			name:  "partial batch",
			emit:  func(l *Logger) { l.LogBatchInsert(ctx, 4, 1) },
			want:  []string{`"msg":"batch partially inserted"`, `"inserted":3`, `"failed":1`},
			level: "WARN",
		},
		{
			name:  "search failed",
			emit:  func(l *Logger) { l.LogSearch(ctx, 5, 0, boom) },
			want:  []string{`"msg":"search"`, `"top_k":5`},
			level: "ERROR",
		},
		{
			name: "repair",
			emit: func(l *Logger) {
				l.LogRepair(ctx, RepairReport{TornVectorBytes: 3, DroppedMetadata: 1, Count: 9})
			},
			want:  []string{`"msg":"store repaired"`, `"torn_vector_bytes":3`, `"dropped_metadata":1`, `"count":9`},
			level: "WARN",
		},
		{
			name:  "snapshot",
			emit:  func(l *Logger) { l.LogSnapshot(ctx, "/data", nil) },
			want:  []string{`"msg":"store files handed to snapshot"`},
			level: "DEBUG",
		},
		{
			name:  "snapshot failed",
			emit:  func(l *Logger) { l.LogSnapshot(ctx, "/data", boom) },
			want:  []string{`"msg":"snapshot store"`, `"error":"boom"`},
			level: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(NewWriterLogger(&buf, "json", slog.LevelDebug).WithComponent("test"))

			out := buf.String()
			assert.Contains(t, out, `"level":"`+tt.level+`"`)
			assert.Contains(t, out, `"component":"test"`)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogOpen(context.Background(), "/data", 1, nil)
}
