package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int) *int { return &v }

func newTestIndex() *Index {
	ix := New()
	ix.Add(0, 5, "p1")
	ix.Add(1, 3, "p1")
	ix.Add(2, 1, "p2")
	ix.Add(3, 4, "")
	ix.Add(4, 5, "p2")
	return ix
}

func TestIndex_Query(t *testing.T) {
	ix := newTestIndex()
	assert.Equal(t, []int{1, 3, 4, 5}, ix.Ratings())
	assert.Equal(t, 2, ix.Products())

	tests := []struct {
		name string
		f    Filter
		want []uint32
	}{
		{"min rating", Filter{MinRating: ptr(4)}, []uint32{0, 3, 4}},
		{"max rating", Filter{MaxRating: ptr(3)}, []uint32{1, 2}},
		{"range", Filter{MinRating: ptr(3), MaxRating: ptr(4)}, []uint32{1, 3}},
		{"empty range", Filter{MinRating: ptr(6)}, []uint32{}},
		{"product", Filter{ProductID: "p2"}, []uint32{2, 4}},
		{"product and rating", Filter{ProductID: "p1", MinRating: ptr(4)}, []uint32{0}},
		{"unknown product", Filter{ProductID: "nope"}, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm := ix.Query(tt.f)
			require.NotNil(t, bm)
			got := bm.ToArray()
			if got == nil {
				got = []uint32{}
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Nil(t, ix.Query(Filter{}))
}

func TestIndex_QueryReturnsCopy(t *testing.T) {
	ix := newTestIndex()
	bm := ix.Query(Filter{ProductID: "p1"})
	bm.Add(99)

	assert.Equal(t, []uint32{0, 1}, ix.Query(Filter{ProductID: "p1"}).ToArray())
}
