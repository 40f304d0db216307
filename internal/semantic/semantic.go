// Package semantic scores books against a free-text query by cosine
// similarity between the query embedding and the precomputed book
// embedding matrix.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hyperjump/bookrs/internal/artifact"
	"github.com/hyperjump/bookrs/internal/encoder"
	"github.com/hyperjump/bookrs/pkg/utils"
)

// Match is one scored book. Score is cosine similarity rounded to four
// decimal places, so it lies in [-1, 1].
type Match struct {
	BookID int64
	Score  float64
}

// Scorer encodes queries and ranks the embedding matrix against them.
type Scorer struct {
	enc encoder.Encoder
}

func NewScorer(enc encoder.Encoder) *Scorer {
	return &Scorer{enc: enc}
}

// TopN returns the n most similar books to query, ordered by score
// descending with ascending book id breaking ties. An empty or
// whitespace-only query yields no matches and no error.
func (s *Scorer) TopN(ctx context.Context, b *artifact.Bundle, query string, n int) ([]Match, error) {
	if strings.TrimSpace(query) == "" || n <= 0 {
		return nil, nil
	}

	qvec, err := s.enc.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if len(qvec) != b.Embeddings.Dim {
		return nil, fmt.Errorf("query embedding has %d dimensions, matrix has %d", len(qvec), b.Embeddings.Dim)
	}

	qnorm := 0.0
	for _, v := range qvec {
		qnorm += float64(v) * float64(v)
	}
	qnorm = math.Sqrt(qnorm)

	matches := make([]Match, 0, b.Embeddings.Len())
	for i := 0; i < b.Embeddings.Len(); i++ {
		score := 0.0
		if qnorm > 0 && b.Embeddings.Norms[i] > 0 {
			row := b.Embeddings.Vectors[i]
			dot := 0.0
			for j, v := range qvec {
				dot += float64(v) * float64(row[j])
			}
			score = dot / (qnorm * b.Embeddings.Norms[i])
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		matches = append(matches, Match{BookID: b.Embeddings.IDs[i], Score: utils.Round4(score)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].BookID < matches[j].BookID
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}
