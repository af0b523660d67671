// Package revsearch provides an embedded semantic-search store for text reviews.
//
// A Store pairs two append-only files in one directory:
//
//   - reviews.vectors: int8-quantized embeddings, one fixed-size record per review
//   - reviews.jsonl: the review documents, one JSON line per review
//
// Line i of the metadata log describes record i of the vector log; i is the
// review's logical id. Search is an exact full scan scored by dot product
// against the dequantized records, with a bounded heap for top-k.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := revsearch.Open("./data", 384)
//	defer store.Close()
//
//	id, _ := store.Insert(ctx, embedding, revsearch.Review{
//	    Title: "Great", Body: "Works as advertised", ProductID: "B0001", Rating: 5,
//	})
//
//	hits, _ := store.Search(ctx, query, 5)
//	for _, h := range hits {
//	    fmt.Println(h.ID, h.Score, h.Review.Title)
//	}
//
// Filtered search restricts candidates before ranking:
//
//	hits, _ := store.Search(ctx, query, 5, func(o *revsearch.SearchOptions) {
//	    o.Filter.ProductID = "B0001"
//	})
//
// # Durability Model
//
// With DurabilitySync (the default) every insert is fsync'd before it returns.
// A vector whose metadata append fails is rolled back. On open, torn trailing
// writes are trimmed and the longer log is truncated to the shorter one, see
// WithRepair.
//
// # Concurrency
//
// One RWMutex covers both logs: inserts are serialized, searches run in
// parallel and never observe a vector without its metadata. An advisory file
// lock keeps a second process from opening the same directory.
package revsearch
