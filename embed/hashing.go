package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing is a deterministic feature-hashing embedder.
//
// Lower-cased word unigrams and bigrams are hashed into Dimension buckets
// with a hash-derived sign, and the result is L2-normalized. Texts sharing
// vocabulary land close together, which is enough for offline use and tests.
// Text without any word yields the zero vector.
type Hashing struct {
	dim int
}

var _ Embedder = (*Hashing)(nil)

// NewHashing creates a hashing embedder producing dim-dimensional vectors.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 384
	}
	return &Hashing{dim: dim}
}

// Embed returns the embedding for a single text.
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(text), nil
}

// EmbedBatch returns embeddings for multiple texts.
func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

// Dimension returns the vector dimensionality.
func (h *Hashing) Dimension() int { return h.dim }

func (h *Hashing) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	words := tokenize(text)

	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (h *Hashing) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()

	idx := sum % uint64(h.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	var words []string
	var word strings.Builder

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}
	if word.Len() > 0 {
		words = append(words, word.String())
	}
	return words
}
