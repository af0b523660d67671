// Package embed provides the text embedding interface and its implementations.
//
// An Embedder converts text into dense vectors suitable for the review store.
//
// # Implementations
//
//   - [Hashing]: deterministic feature-hashing embedder, no network, no model
//   - [OpenAI]: OpenAI (or any OpenAI-compatible) embeddings API
//   - [Fallback]: decorator that maps empty text and embedding failures to
//     the zero vector so ingestion never stops on a single bad document
//
// # Quick Start
//
//	e := embed.NewFallback(embed.NewOpenAI("sk-xxx", embed.WithDimension(384)), nil)
//	vec, err := e.Embed(ctx, "great product")
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// ErrEmptyInput is returned when the input text is empty.
var ErrEmptyInput = errors.New("embed: empty input")
