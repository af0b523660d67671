// Package service ties an embedder to a review store: it turns review and
// query text into vectors and validates requests before they reach the store.
package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/embed"
)

// Rating bounds accepted on insert and in filters.
const (
	MinRating = 0
	MaxRating = 5
)

// Options configures a Service.
type Options struct {
	// BatchSize is the number of texts sent to the embedder per call.
	BatchSize int
	// Concurrency bounds the embedding calls in flight.
	Concurrency int
	// DefaultTopK is used when a query asks for zero results.
	DefaultTopK int
	// MaxTopK rejects larger queries.
	MaxTopK int
	Logger  *revsearch.Logger
}

// DefaultOptions returns the service defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:   64,
		Concurrency: 4,
		DefaultTopK: 5,
		MaxTopK:     100,
		Logger:      revsearch.NoopLogger(),
	}
}

// Service embeds review and query text and forwards it to the store.
type Service struct {
	store    *revsearch.Store
	embedder embed.Embedder
	opts     Options
	logger   *revsearch.Logger
}

// New creates a Service. The embedder must produce vectors of the store's
// dimension.
func New(store *revsearch.Store, embedder embed.Embedder, optFns ...func(o *Options)) (*Service, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultOptions().DefaultTopK
	}
	if opts.MaxTopK < opts.DefaultTopK {
		opts.MaxTopK = opts.DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = revsearch.NoopLogger()
	}

	if embedder.Dimension() != store.Dimension() {
		return nil, &revsearch.ErrDimensionMismatch{Expected: store.Dimension(), Actual: embedder.Dimension()}
	}

	return &Service{
		store:    store,
		embedder: embedder,
		opts:     opts,
		logger:   opts.Logger.WithComponent("service"),
	}, nil
}

// Inserted is a stored review with its logical id.
type Inserted struct {
	ID     uint64           `json:"id"`
	Review revsearch.Review `json:"review"`
}

// Query is a text search request.
type Query struct {
	Text   string
	TopK   int
	Filter revsearch.Filter
}

// AddReview embeds and stores a single review.
func (s *Service) AddReview(ctx context.Context, r revsearch.Review) (Inserted, error) {
	if err := ValidateReview(r); err != nil {
		return Inserted{}, err
	}
	vec, err := s.embedder.Embed(ctx, r.Text())
	if err != nil {
		return Inserted{}, fmt.Errorf("embed review: %w", err)
	}
	id, err := s.store.Insert(ctx, vec, r)
	if err != nil {
		return Inserted{}, err
	}
	stored, err := s.store.Get(id)
	if err != nil {
		return Inserted{}, err
	}
	return Inserted{ID: id, Review: stored}, nil
}

// AddReviews embeds reviews in parallel batches and stores them in order.
// Validation covers every review before anything is embedded.
func (s *Service) AddReviews(ctx context.Context, reviews []revsearch.Review) ([]Inserted, error) {
	if len(reviews) == 0 {
		return []Inserted{}, nil
	}
	texts := make([]string, len(reviews))
	for i, r := range reviews {
		if err := ValidateReview(r); err != nil {
			return nil, fmt.Errorf("review %d: %w", i, err)
		}
		texts[i] = r.Text()
	}

	vecs, err := EmbedParallel(ctx, s.embedder, texts, s.opts.BatchSize, s.opts.Concurrency)
	if err != nil {
		return nil, err
	}

	ids, err := s.store.InsertBatch(ctx, vecs, reviews)
	out := make([]Inserted, 0, len(ids))
	for _, id := range ids {
		r, gerr := s.store.Get(id)
		if gerr != nil {
			return out, gerr
		}
		out = append(out, Inserted{ID: id, Review: r})
	}
	if err != nil {
		return out, err
	}

	s.logger.InfoContext(ctx, "reviews added", "count", len(out))
	return out, nil
}

// Search embeds q.Text and returns the best matching reviews.
func (s *Service) Search(ctx context.Context, q Query) ([]revsearch.Hit, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", revsearch.ErrInvalidArgument)
	}
	k := q.TopK
	switch {
	case k < 0:
		return nil, fmt.Errorf("%w: top_k must not be negative", revsearch.ErrInvalidArgument)
	case k == 0:
		k = s.opts.DefaultTopK
	case k > s.opts.MaxTopK:
		return nil, fmt.Errorf("%w: top_k must not exceed %d", revsearch.ErrInvalidArgument, s.opts.MaxTopK)
	}
	if err := ValidateFilter(q.Filter); err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.Search(ctx, vec, k, func(o *revsearch.SearchOptions) {
		o.Filter = q.Filter
	})
}

// Get returns the review with logical id.
func (s *Service) Get(id uint64) (revsearch.Review, error) {
	return s.store.Get(id)
}

// Stats returns store statistics.
func (s *Service) Stats() (revsearch.Stats, error) {
	return s.store.Stats()
}

// Store returns the underlying store.
func (s *Service) Store() *revsearch.Store { return s.store }

// ValidateReview checks the fields a client controls.
func ValidateReview(r revsearch.Review) error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("%w: review_rating must be between %d and %d, got %d",
			revsearch.ErrInvalidArgument, MinRating, MaxRating, r.Rating)
	}
	return nil
}

// ValidateFilter checks rating bounds.
func ValidateFilter(f revsearch.Filter) error {
	for _, v := range []*int{f.MinRating, f.MaxRating} {
		if v != nil && (*v < MinRating || *v > MaxRating) {
			return fmt.Errorf("%w: rating filter must be between %d and %d",
				revsearch.ErrInvalidArgument, MinRating, MaxRating)
		}
	}
	if f.MinRating != nil && f.MaxRating != nil && *f.MinRating > *f.MaxRating {
		return fmt.Errorf("%w: min_rating %d exceeds max_rating %d",
			revsearch.ErrInvalidArgument, *f.MinRating, *f.MaxRating)
	}
	return nil
}

// EmbedParallel embeds texts in batches of batchSize with at most
// concurrency batches in flight. The result preserves the input order.
func EmbedParallel(ctx context.Context, e embed.Embedder, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed batch [%d:%d]: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
