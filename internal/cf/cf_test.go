package cf

import (
	"testing"

	"github.com/hyperjump/bookrs/internal/artifact"
	"github.com/hyperjump/bookrs/internal/idmap"
)

func testBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	um, err := idmap.New(map[int64]int{100: 0, 200: 1})
	if err != nil {
		t.Fatalf("user map: %v", err)
	}
	im, err := idmap.New(map[int64]int{1: 0, 2: 1, 3: 2})
	if err != nil {
		t.Fatalf("item map: %v", err)
	}
	return &artifact.Bundle{
		UserFactors: &artifact.Factors{K: 2, Rows: [][]float32{{1, 2}, {0, -1}}},
		ItemFactors: &artifact.Factors{K: 2, Rows: [][]float32{{3, 0.5}, {0, 0}, {-1, 1}}},
		UserMap:     um,
		ItemMap:     im,
	}
}

func TestScoreKnownPair(t *testing.T) {
	b := testBundle(t)

	// user 100 = (1,2), book 1 = (3,0.5): dot = 3 + 1 = 4
	score, sig := Score(b, 100, 1)
	if sig != SignalOK {
		t.Fatalf("signal = %v, want SignalOK", sig)
	}
	if score != 4 {
		t.Errorf("score = %v, want 4", score)
	}

	// user 200 = (0,-1), book 3 = (-1,1): dot = -1
	score, sig = Score(b, 200, 3)
	if sig != SignalOK || score != -1 {
		t.Errorf("score = %v sig = %v, want -1 SignalOK", score, sig)
	}
}

func TestScoreUnknownUser(t *testing.T) {
	b := testBundle(t)
	score, sig := Score(b, 999, 1)
	if sig != SignalUnknownUser {
		t.Errorf("signal = %v, want SignalUnknownUser", sig)
	}
	if score != 0 {
		t.Errorf("score = %v, want 0", score)
	}
}

func TestScoreUnknownItem(t *testing.T) {
	b := testBundle(t)
	score, sig := Score(b, 100, 77)
	if sig != SignalUnknownItem {
		t.Errorf("signal = %v, want SignalUnknownItem", sig)
	}
	if score != 0 {
		t.Errorf("score = %v, want 0", score)
	}
}

func TestUserKnown(t *testing.T) {
	b := testBundle(t)
	if !UserKnown(b, 100) {
		t.Error("user 100 should be known")
	}
	if UserKnown(b, 5) {
		t.Error("user 5 should be unknown")
	}
}
