package semantic

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/bookrs/internal/artifact"
)

// fixedEncoder returns the same vector for every query.
type fixedEncoder struct {
	vec []float32
	err error
}

func (f *fixedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fixedEncoder) Dimensions() int { return len(f.vec) }
func (f *fixedEncoder) Close() error    { return nil }

func testBundle(ids []int64, vecs [][]float32) *artifact.Bundle {
	norms := make([]float64, len(vecs))
	for i, v := range vecs {
		s := 0.0
		for _, x := range v {
			s += float64(x) * float64(x)
		}
		norms[i] = math.Sqrt(s)
	}
	return &artifact.Bundle{
		Embeddings: &artifact.Embeddings{
			Dim:     len(vecs[0]),
			IDs:     ids,
			Vectors: vecs,
			Norms:   norms,
		},
	}
}

func TestTopNOrdering(t *testing.T) {
	b := testBundle(
		[]int64{10, 20, 30},
		[][]float32{
			{1, 0},   // cosine 1.0 against query
			{0, 1},   // cosine 0.0
			{1, 1},   // cosine ~0.7071
		},
	)
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0}})

	matches, err := s.TopN(context.Background(), b, "space opera", 3)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	wantIDs := []int64{10, 30, 20}
	wantScores := []float64{1.0, 0.7071, 0.0}
	for i := range matches {
		if matches[i].BookID != wantIDs[i] {
			t.Errorf("match[%d].BookID = %d, want %d", i, matches[i].BookID, wantIDs[i])
		}
		if matches[i].Score != wantScores[i] {
			t.Errorf("match[%d].Score = %v, want %v", i, matches[i].Score, wantScores[i])
		}
	}
}

func TestTopNTieBreakByID(t *testing.T) {
	// Identical vectors give identical scores; the lower id must win.
	b := testBundle(
		[]int64{7, 3, 5},
		[][]float32{{1, 0}, {1, 0}, {1, 0}},
	)
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0}})

	matches, err := s.TopN(context.Background(), b, "anything", 3)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	for i, want := range []int64{3, 5, 7} {
		if matches[i].BookID != want {
			t.Errorf("match[%d].BookID = %d, want %d", i, matches[i].BookID, want)
		}
	}
}

func TestTopNTruncates(t *testing.T) {
	b := testBundle(
		[]int64{1, 2, 3, 4},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {1, 2}},
	)
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0}})

	matches, err := s.TopN(context.Background(), b, "q", 2)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches, want 2", len(matches))
	}
}

func TestTopNEmptyQuery(t *testing.T) {
	b := testBundle([]int64{1}, [][]float32{{1, 0}})
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0}})

	for _, q := range []string{"", "   ", "\t\n"} {
		matches, err := s.TopN(context.Background(), b, q, 5)
		if err != nil {
			t.Errorf("query %q: %v", q, err)
		}
		if len(matches) != 0 {
			t.Errorf("query %q: got %d matches, want 0", q, len(matches))
		}
	}
}

func TestTopNScoreBounds(t *testing.T) {
	b := testBundle(
		[]int64{1, 2, 3},
		[][]float32{{-1, 0}, {0.3, -0.9}, {0, 0}},
	)
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0}})

	matches, err := s.TopN(context.Background(), b, "q", 3)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	for _, m := range matches {
		if m.Score < -1 || m.Score > 1 {
			t.Errorf("book %d: score %v outside [-1,1]", m.BookID, m.Score)
		}
	}
}

func TestTopNZeroNormRow(t *testing.T) {
	b := testBundle(
		[]int64{1, 2},
		[][]float32{{0, 0}, {1, 0}},
	)
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0}})

	matches, err := s.TopN(context.Background(), b, "q", 2)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if matches[0].BookID != 2 {
		t.Errorf("top match = %d, want 2", matches[0].BookID)
	}
	if matches[1].BookID != 1 || matches[1].Score != 0 {
		t.Errorf("zero-norm row should score 0, got %+v", matches[1])
	}
}

func TestTopNEncodeError(t *testing.T) {
	b := testBundle([]int64{1}, [][]float32{{1, 0}})
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0}, err: errors.New("model gone")})

	if _, err := s.TopN(context.Background(), b, "q", 1); err == nil {
		t.Fatal("expected encode error to propagate")
	}
}

func TestTopNDimensionMismatch(t *testing.T) {
	b := testBundle([]int64{1}, [][]float32{{1, 0}})
	s := NewScorer(&fixedEncoder{vec: []float32{1, 0, 0}})

	if _, err := s.TopN(context.Background(), b, "q", 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
