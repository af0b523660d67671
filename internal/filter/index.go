// Package filter maintains roaring-bitmap inverted indexes over review
// attributes so searches can be restricted before ranking.
package filter

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Filter restricts a search. A nil bound or an empty product id is unset.
type Filter struct {
	MinRating *int
	MaxRating *int
	ProductID string
}

// IsEmpty reports whether f restricts nothing.
func (f Filter) IsEmpty() bool {
	return f.MinRating == nil && f.MaxRating == nil && f.ProductID == ""
}

// Index maps ratings and product ids to the set of record ids carrying them.
// Safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	ratings  map[int]*roaring.Bitmap
	products map[string]*roaring.Bitmap
}

// New creates an empty index.
func New() *Index {
	return &Index{
		ratings:  make(map[int]*roaring.Bitmap),
		products: make(map[string]*roaring.Bitmap),
	}
}

// Add indexes record id.
func (ix *Index) Add(id uint32, rating int, productID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	bm, ok := ix.ratings[rating]
	if !ok {
		bm = roaring.New()
		ix.ratings[rating] = bm
	}
	bm.Add(id)

	if productID != "" {
		bm, ok := ix.products[productID]
		if !ok {
			bm = roaring.New()
			ix.products[productID] = bm
		}
		bm.Add(id)
	}
}

// Query returns the ids matching f, or nil when f is empty. The result is a
// fresh bitmap owned by the caller.
func (ix *Index) Query(f Filter) *roaring.Bitmap {
	if f.IsEmpty() {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var result *roaring.Bitmap

	if f.MinRating != nil || f.MaxRating != nil {
		var matched []*roaring.Bitmap
		for rating, bm := range ix.ratings {
			if f.MinRating != nil && rating < *f.MinRating {
				continue
			}
			if f.MaxRating != nil && rating > *f.MaxRating {
				continue
			}
			matched = append(matched, bm)
		}
		result = roaring.FastOr(matched...)
	}

	if f.ProductID != "" {
		bm, ok := ix.products[f.ProductID]
		if !ok {
			return roaring.New()
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
	}
	return result
}

// Ratings returns the indexed rating values in ascending order.
func (ix *Index) Ratings() []int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]int, 0, len(ix.ratings))
	for r := range ix.ratings {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// Products returns the number of distinct product ids.
func (ix *Index) Products() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.products)
}
