package revsearch

import (
	"context"
	"time"

	"github.com/hupe1980/revsearch/internal/filter"
	"github.com/hupe1980/revsearch/internal/searcher"
)

// Result is a ranked logical id without its review.
type Result = searcher.Result

// Filter restricts search candidates by rating range and product id.
type Filter = filter.Filter

// SearchOptions configures a search.
type SearchOptions struct {
	Filter Filter
}

// Search returns up to k reviews most similar to query, best first.
//
// k == 0 and an empty store return an empty slice; a negative k returns
// ErrInvalidK. Equal scores are ordered by ascending id.
func (s *Store) Search(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) ([]Hit, error) {
	start := time.Now()

	hits, err := s.search(ctx, query, k, optFns)

	s.metrics.RecordSearch(k, time.Since(start), err)
	s.logger.LogSearch(ctx, k, len(hits), err)
	return hits, err
}

func (s *Store) search(ctx context.Context, query []float32, k int, optFns []func(o *SearchOptions)) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.rankLocked(ctx, query, k, optFns)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	reviews, err := s.meta.GetMany(ids)
	if err != nil {
		return nil, translateError(err)
	}

	hits := make([]Hit, len(res))
	for i, r := range res {
		hits[i] = Hit{ID: r.ID, Score: r.Score, Review: reviews[i]}
	}
	return hits, nil
}

// SearchIDs ranks like Search but returns logical ids only.
func (s *Store) SearchIDs(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) ([]Result, error) {
	start := time.Now()

	s.mu.RLock()
	res, err := s.rankLocked(ctx, query, k, optFns)
	s.mu.RUnlock()

	s.metrics.RecordSearch(k, time.Since(start), err)
	s.logger.LogSearch(ctx, k, len(res), err)
	return res, err
}

func (s *Store) rankLocked(ctx context.Context, query []float32, k int, optFns []func(o *SearchOptions)) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrClosed
	}

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	recs, err := s.vectors.ReadAll()
	if err != nil {
		return nil, translateError(err)
	}
	res, err := searcher.Search(recs, s.vectors.Codec(), query, k, s.filter.Query(opts.Filter))
	if err != nil {
		return nil, translateError(err)
	}
	return res, nil
}
