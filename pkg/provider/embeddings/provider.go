// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. The store uses
// these vectors to index workout notes for semantic search ("when did my knee
// hurt during squats?").
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over a text-embedding backend.
//
// All vectors produced by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different instances must not be mixed
// in the same similarity computation unless both use the same model.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The
	// returned slice has length Dimensions().
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for a slice of texts in one provider call.
	// The returned slice has the same length as texts, index-aligned. On error
	// no partial results are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces. Constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, for logging and
	// for checking index/model consistency.
	ModelID() string
}
