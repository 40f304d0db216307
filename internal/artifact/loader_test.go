package artifact

import (
	"strings"
	"testing"
)

// writeFixture writes a small, mutually consistent artifact set:
// 4 embedded books (dim 4), 3 factor users and 3 factor items (k 2),
// and a popularity row per book.
func writeFixture(t *testing.T, dir string) Paths {
	t.Helper()
	p := DefaultPaths(dir)

	ids := []int64{1, 2, 3, 4}
	vecs := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0.5, 0.5, 0.5, 0.5},
	}
	if err := WriteEmbeddings(p.Embeddings, 4, ids, vecs); err != nil {
		t.Fatalf("write embeddings: %v", err)
	}
	meta := []BookMeta{
		{BookID: 1, Title: "Dune", Authors: "Frank Herbert"},
		{BookID: 2, Title: "Neuromancer", Authors: "William Gibson"},
		{BookID: 3, Title: "Emma", Authors: "Jane Austen"},
		{BookID: 4, Title: "Hyperion", Authors: "Dan Simmons"},
	}
	if err := WriteMeta(p.Meta, meta); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if err := WriteFactors(p.UserFactors, 2, [][]float32{{1, 0}, {0, 1}, {1, 1}}); err != nil {
		t.Fatalf("write user factors: %v", err)
	}
	if err := WriteFactors(p.ItemFactors, 2, [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}); err != nil {
		t.Fatalf("write item factors: %v", err)
	}
	if err := WriteIDMapTable(p.UserMap, map[int64]int{10: 0, 20: 1, 30: 2}); err != nil {
		t.Fatalf("write user map: %v", err)
	}
	if err := WriteIDMapTable(p.ItemMap, map[int64]int{1: 0, 2: 1, 3: 2}); err != nil {
		t.Fatalf("write item map: %v", err)
	}
	pop := []PopularityEntry{
		{BookID: 1, AvgRating: 4.4, NumRatings: 120, PopScore: 4.2},
		{BookID: 2, AvgRating: 4.1, NumRatings: 80, PopScore: 3.9},
		{BookID: 3, AvgRating: 4.6, NumRatings: 40, PopScore: 3.9},
		{BookID: 4, AvgRating: 3.2, NumRatings: 10, PopScore: 2.8},
	}
	if err := WritePopularity(p.Popularity, pop); err != nil {
		t.Fatalf("write popularity: %v", err)
	}
	return p
}

func TestLoadValid(t *testing.T) {
	p := writeFixture(t, t.TempDir())
	b, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Embeddings.Len() != 4 || b.Embeddings.Dim != 4 {
		t.Errorf("embeddings %d x %d, want 4 x 4", b.Embeddings.Len(), b.Embeddings.Dim)
	}
	if b.UserFactors.K != 2 || b.ItemFactors.K != 2 {
		t.Errorf("k = %d/%d, want 2/2", b.UserFactors.K, b.ItemFactors.K)
	}
	if m, ok := b.Book(2); !ok || m.Title != "Neuromancer" {
		t.Errorf("Book(2) = %+v, %v", m, ok)
	}
	if s, ok := b.PopScore(1); !ok || s != 4.2 {
		t.Errorf("PopScore(1) = %v, %v", s, ok)
	}
	// Popularity is sorted descending with ascending id tie-break: 2 and 3
	// share a score, so 2 must come first.
	wantOrder := []int64{1, 2, 3, 4}
	for i, entry := range b.Popularity {
		if entry.BookID != wantOrder[i] {
			t.Errorf("popularity[%d] = %d, want %d", i, entry.BookID, wantOrder[i])
		}
	}
}

func TestLoadFailures(t *testing.T) {
	cases := []struct {
		name    string
		corrupt func(t *testing.T, p Paths)
		wantMsg string
	}{
		{
			name: "metadata row count mismatch",
			corrupt: func(t *testing.T, p Paths) {
				if err := WriteMeta(p.Meta, []BookMeta{{BookID: 1, Title: "Dune"}}); err != nil {
					t.Fatal(err)
				}
			},
			wantMsg: "must be parallel",
		},
		{
			name: "metadata row order divergence",
			corrupt: func(t *testing.T, p Paths) {
				meta := []BookMeta{
					{BookID: 2, Title: "Neuromancer"},
					{BookID: 1, Title: "Dune"},
					{BookID: 3, Title: "Emma"},
					{BookID: 4, Title: "Hyperion"},
				}
				if err := WriteMeta(p.Meta, meta); err != nil {
					t.Fatal(err)
				}
			},
			wantMsg: "row order diverged",
		},
		{
			name: "factor k mismatch",
			corrupt: func(t *testing.T, p Paths) {
				if err := WriteFactors(p.ItemFactors, 3, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}); err != nil {
					t.Fatal(err)
				}
			},
			wantMsg: "disagree on k",
		},
		{
			name: "mapping size mismatch",
			corrupt: func(t *testing.T, p Paths) {
				if err := WriteIDMapTable(p.UserMap, map[int64]int{10: 0, 20: 1}); err != nil {
					t.Fatal(err)
				}
			},
			wantMsg: "entries but",
		},
		{
			name: "non-bijective mapping",
			corrupt: func(t *testing.T, p Paths) {
				if err := WriteIDMapTable(p.ItemMap, map[int64]int{1: 0, 2: 0, 3: 1}); err != nil {
					t.Fatal(err)
				}
			},
			wantMsg: "duplicate row index",
		},
		{
			name: "negative popularity score",
			corrupt: func(t *testing.T, p Paths) {
				if err := WritePopularity(p.Popularity, []PopularityEntry{{BookID: 1, PopScore: -1}}); err != nil {
					t.Fatal(err)
				}
			},
			wantMsg: "negative score",
		},
		{
			name: "duplicate popularity id",
			corrupt: func(t *testing.T, p Paths) {
				pop := []PopularityEntry{{BookID: 1, PopScore: 1}, {BookID: 1, PopScore: 2}}
				if err := WritePopularity(p.Popularity, pop); err != nil {
					t.Fatal(err)
				}
			},
			wantMsg: "duplicate book id",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := writeFixture(t, t.TempDir())
			c.corrupt(t, p)
			_, err := Load(p)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), c.wantMsg) {
				t.Errorf("error %q does not mention %q", err, c.wantMsg)
			}
		})
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(DefaultPaths(dir))
	if err == nil {
		t.Fatal("Load of empty dir should fail")
	}
	if !strings.Contains(err.Error(), "book_embeddings.vec") {
		t.Errorf("error should name the missing file, got %q", err)
	}
}

func TestStoreReload(t *testing.T) {
	dir := t.TempDir()
	p := writeFixture(t, dir)
	store, err := NewStore(p, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	first := store.Current()
	if first == nil {
		t.Fatal("Current is nil")
	}

	// A failed reload must keep the previous snapshot live.
	if err := WritePopularity(p.Popularity, []PopularityEntry{{BookID: 9, PopScore: -3}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err == nil {
		t.Fatal("reload of corrupted popularity should fail")
	}
	if store.Current() != first {
		t.Error("failed reload must not swap the bundle")
	}

	// A successful reload swaps in a whole new snapshot.
	if err := WritePopularity(p.Popularity, []PopularityEntry{{BookID: 1, PopScore: 7}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	second := store.Current()
	if second == first {
		t.Fatal("reload must produce a new snapshot")
	}
	if s, _ := second.PopScore(1); s != 7 {
		t.Errorf("new snapshot PopScore(1) = %v, want 7", s)
	}
	// The old snapshot is still internally consistent for in-flight readers.
	if s, _ := first.PopScore(1); s != 4.2 {
		t.Errorf("old snapshot mutated: PopScore(1) = %v", s)
	}
}

func TestNewStoreFailsFast(t *testing.T) {
	if _, err := NewStore(DefaultPaths(t.TempDir()), nil); err == nil {
		t.Fatal("NewStore without artifacts must fail")
	}
}
