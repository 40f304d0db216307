// Package encoder turns a free-text query into a vector in the same embedding
// space as the precomputed book embeddings. The encoding model itself is an
// external collaborator; the load-bearing contract is its output: a fixed-
// dimensionality real vector that can be L2-normalized.
package encoder

import "context"

// Encoder produces a query vector. Implementations must be safe for concurrent
// use and must return vectors of exactly Dimensions() length.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
