package searcher

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/revsearch/internal/vectorlog"
	"github.com/hupe1980/revsearch/quantization"
)

// ErrInvalidK is returned for a negative k.
var ErrInvalidK = errors.New("searcher: k must not be negative")

// ErrDimensionMismatch is returned when the query length differs from the
// record width.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("searcher: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Search ranks every record in recs against query and returns at most k
// results, best first.
//
// k == 0 and an empty log yield an empty, non-nil slice. When allow is
// non-nil only ids contained in it are considered. Records scoring NaN are
// skipped.
func Search(recs *vectorlog.Records, codec *quantization.Int8Codec, query []float32, k int, allow *roaring.Bitmap) ([]Result, error) {
	if k < 0 {
		return nil, ErrInvalidK
	}
	if dim := recs.Dim(); len(query) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	n := recs.Len()
	if k == 0 || n == 0 {
		return []Result{}, nil
	}

	top := NewTopK(min(k, n))
	if allow != nil {
		it := allow.Iterator()
		for it.HasNext() {
			id := int(it.Next())
			if id >= n {
				break
			}
			score(top, recs, codec, query, id)
		}
		return top.Drain(), nil
	}

	for id := range n {
		score(top, recs, codec, query, id)
	}
	return top.Drain(), nil
}

func score(top *TopK, recs *vectorlog.Records, codec *quantization.Int8Codec, query []float32, id int) {
	s := codec.Dot(query, recs.At(id))
	if math.IsNaN(float64(s)) {
		return
	}
	top.Push(Result{ID: uint64(id), Score: s})
}
