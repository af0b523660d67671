package revsearch

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Writer w inserts vectors along axis w tagged with product p<w> and rating
// w+1, so a hit's score tells which writer's metadata it must carry.
func TestStore_ConcurrentInsertSearch(t *testing.T) {
	const (
		writers   = 4
		perWriter = 50
		searchers = 3
	)
	ctx := context.Background()
	s, _ := openTestStore(t, writers, WithDurability(DurabilityAsync))

	minRating := 2
	var done atomic.Bool
	g, gctx := errgroup.WithContext(ctx)

	ig, _ := errgroup.WithContext(gctx)
	for w := 0; w < writers; w++ {
		ig.Go(func() error {
			for i := 0; i < perWriter; i++ {
				vec := make([]float32, writers)
				vec[w] = 1
				r := Review{
					ID:        fmt.Sprintf("w%d-%d", w, i),
					Title:     "t",
					ProductID: fmt.Sprintf("p%d", w),
					Rating:    w + 1,
				}
				if i%10 == 9 {
					if _, err := s.InsertBatch(gctx, [][]float32{vec}, []Review{r}); err != nil {
						return err
					}
					continue
				}
				if _, err := s.Insert(gctx, vec, r); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer done.Store(true)
		return ig.Wait()
	})

	for q := 0; q < searchers; q++ {
		g.Go(func() error {
			last := 0
			for !done.Load() {
				axis := q % writers
				query := make([]float32, writers)
				query[axis] = 1

				hits, err := s.Search(gctx, query, 25)
				if err != nil {
					return err
				}
				for _, h := range hits {
					if h.Review.ID == "" {
						return fmt.Errorf("hit %d has no review", h.ID)
					}
					if h.Score > 0.5 && h.Review.ProductID != fmt.Sprintf("p%d", axis) {
						return fmt.Errorf("hit %d scored %.2f but carries %s", h.ID, h.Score, h.Review.ProductID)
					}
				}

				filtered, err := s.Search(gctx, query, 10, func(o *SearchOptions) {
					o.Filter = Filter{ProductID: "p1", MinRating: &minRating}
				})
				if err != nil {
					return err
				}
				for _, h := range filtered {
					if h.Review.ProductID != "p1" || h.Review.Rating != 2 {
						return fmt.Errorf("filtered hit %d carries %+v", h.ID, h.Review)
					}
				}

				n, err := s.Len()
				if err != nil {
					return err
				}
				if n < last {
					return fmt.Errorf("len went from %d to %d", last, n)
				}
				last = n
				runtime.Gosched()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, n)

	seen := make(map[string]bool, n)
	for id := 0; id < n; id++ {
		r, err := s.Get(uint64(id))
		require.NoError(t, err)
		assert.False(t, seen[r.ID], r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, seen, writers*perWriter)

	hits, err := s.Search(ctx, []float32{0, 0, 1, 0}, perWriter)
	require.NoError(t, err)
	require.Len(t, hits, perWriter)
	for _, h := range hits {
		assert.Equal(t, "p2", h.Review.ProductID)
	}
}
