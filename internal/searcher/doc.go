// Package searcher implements exhaustive top-k ranking over a vector log.
//
// Every stored record is scored against the query by dot product, with the
// query kept in float32 and the stored codes dequantized component by
// component. A bounded min-heap keeps the k best candidates, so a scan over N
// records costs O(N·D + N·log k) time and O(k) extra space.
//
// Results are ordered by descending score; equal scores are ordered by
// ascending id, so the output is deterministic for a given log.
package searcher
