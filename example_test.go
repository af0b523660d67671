package revsearch_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hupe1980/revsearch"
)

// Example stores three reviews and ranks them against a query vector.
func Example() {
	dir, err := os.MkdirTemp("", "revsearch-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := revsearch.Open(dir, 4)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	for i, vec := range [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.7, 0.7, 0, 0},
	} {
		if _, err := store.Insert(ctx, vec, revsearch.Review{Title: fmt.Sprintf("review %d", i)}); err != nil {
			log.Fatal(err)
		}
	}

	hits, err := store.Search(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		log.Fatal(err)
	}
	for _, h := range hits {
		fmt.Printf("%d %.2f %s\n", h.ID, h.Score, h.Review.Title)
	}
	// Output:
	// 0 1.00 review 0
	// 2 0.71 review 2
}

// ExampleStore_Search_filter restricts a search to well rated reviews.
func ExampleStore_Search_filter() {
	dir, err := os.MkdirTemp("", "revsearch-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := revsearch.Open(dir, 4)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	_, err = store.InsertBatch(ctx,
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0.7, 0.7, 0, 0}},
		[]revsearch.Review{{Rating: 5}, {Rating: 1}, {Rating: 4}},
	)
	if err != nil {
		log.Fatal(err)
	}

	minRating := 4
	hits, err := store.Search(ctx, []float32{0, 1, 0, 0}, 10, func(o *revsearch.SearchOptions) {
		o.Filter = revsearch.Filter{MinRating: &minRating}
	})
	if err != nil {
		log.Fatal(err)
	}
	for _, h := range hits {
		fmt.Printf("%d %.2f rating=%d\n", h.ID, h.Score, h.Review.Rating)
	}
	// Output:
	// 2 0.71 rating=4
	// 0 0.00 rating=5
}
