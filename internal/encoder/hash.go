package encoder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/hyperjump/bookrs/pkg/utils"
)

// HashEncoder is a deterministic bag-of-words encoder: each word hashes to a
// pseudo-random unit vector and the query vector is their normalized sum. The
// same text always encodes to the same vector, and texts sharing words encode
// to similar vectors, which is enough for tests and for running without the
// ONNX model. It is NOT a substitute for the model the book embeddings were
// built with; production deployments should ship the real model.
type HashEncoder struct {
	dimensions int
}

// NewHashEncoder returns a deterministic encoder of the given dimensionality.
func NewHashEncoder(dimensions int) *HashEncoder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEncoder{dimensions: dimensions}
}

// Encode returns the deterministic vector for text. Empty text encodes to the
// zero vector, which downstream cosine scoring treats as "no signal".
func (e *HashEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		seed := h.Sum64()
		for i := 0; i < e.dimensions; i++ {
			// xorshift64 keeps word vectors cheap and reproducible.
			seed ^= seed << 13
			seed ^= seed >> 7
			seed ^= seed << 17
			vec[i] += float32(math.Sin(float64(seed%100000)) * 0.1)
		}
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the vector dimensionality.
func (e *HashEncoder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEncoder.
func (e *HashEncoder) Close() error {
	return nil
}
