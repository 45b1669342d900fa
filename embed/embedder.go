// Package embed defines the text embedding contract. The core never
// computes embeddings itself; callers supply them, and implementations
// here exist for ingestion pipelines and tests.
package embed

import "context"

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	// Embed returns the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding size this embedder produces.
	Dimensions() int
}
