package embed

import (
	"context"
	"log/slog"
	"strings"
)

// Fallback wraps an Embedder so that ingestion and search never fail on a
// single document: empty or whitespace-only text and embedding errors yield
// the zero vector. Errors are logged at warn level. A canceled context is
// still reported.
type Fallback struct {
	next   Embedder
	logger *slog.Logger
}

var _ Embedder = (*Fallback)(nil)

// NewFallback wraps next. A nil logger uses slog.Default().
func NewFallback(next Embedder, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{next: next, logger: logger}
}

// Embed returns the embedding of text or the zero vector.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return f.zero(), nil
	}
	vec, err := f.next.Embed(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		f.logger.WarnContext(ctx, "embedding failed, using zero vector", "error", err)
		return f.zero(), nil
	}
	return vec, nil
}

// EmbedBatch embeds all non-empty texts in one call. If the batch call fails
// every text is retried on its own.
func (f *Fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		pending []string
		slots   []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = f.zero()
			continue
		}
		pending = append(pending, t)
		slots = append(slots, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	vecs, err := f.next.EmbedBatch(ctx, pending)
	if err == nil && len(vecs) == len(pending) {
		for j, v := range vecs {
			out[slots[j]] = v
		}
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	f.logger.WarnContext(ctx, "batch embedding failed, retrying individually",
		"count", len(pending),
		"error", err,
	)

	for j, t := range pending {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[slots[j]] = v
	}
	return out, nil
}

// Dimension returns the wrapped embedder's dimensionality.
func (f *Fallback) Dimension() int { return f.next.Dimension() }

func (f *Fallback) zero() []float32 { return make([]float32, f.next.Dimension()) }
