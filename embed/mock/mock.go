// Package mock provides a deterministic hash-based embedder for tests
// and local development. The same text always maps to the same unit
// vector; different texts almost never collide.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// Embedder generates pseudo-random embeddings seeded by a text hash.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a mock embedder of the given size. Small
// sizes keep test fixtures readable.
func NewWithDimensions(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed derives a deterministic unit vector from the text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	// splitmix64 stream seeded by the hash; each step yields one
	// component in [-1, 1].
	state := h.Sum64()
	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		embedding[i] = float32(int64(z)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
