// Package integration exercises the full recommendation pipeline against real
// artifacts, storage, and indices on disk.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/bookrs/internal/artifact"
	"github.com/hyperjump/bookrs/internal/encoder"
	"github.com/hyperjump/bookrs/internal/keyword"
	"github.com/hyperjump/bookrs/internal/models"
	"github.com/hyperjump/bookrs/internal/popularity"
	"github.com/hyperjump/bookrs/internal/recommend"
	"github.com/hyperjump/bookrs/internal/semantic"
	"github.com/hyperjump/bookrs/internal/storage"
)

var catalog = []*models.Book{
	{ID: 1, Title: "Dune", Authors: "Frank Herbert", Description: "Desert planet, spice, imperial politics"},
	{ID: 2, Title: "Neuromancer", Authors: "William Gibson", Description: "Console cowboy hacks corporate AIs"},
	{ID: 3, Title: "Emma", Authors: "Jane Austen", Description: "Matchmaking and manners in Regency England"},
	{ID: 4, Title: "Hyperion", Authors: "Dan Simmons", Description: "Pilgrims tell their tales on a doomed world"},
	{ID: 5, Title: "Snow Crash", Authors: "Neal Stephenson", Description: "Pizza delivery and a metaverse virus"},
}

// writeArtifacts embeds the catalog with enc and writes a complete artifact
// set: embeddings, metadata, small ALS factors, id maps, and popularity.
func writeArtifacts(t *testing.T, dir string, enc encoder.Encoder, pop []artifact.PopularityEntry) artifact.Paths {
	t.Helper()
	p := artifact.DefaultPaths(dir)
	ctx := context.Background()

	ids := make([]int64, len(catalog))
	vecs := make([][]float32, len(catalog))
	meta := make([]artifact.BookMeta, len(catalog))
	for i, b := range catalog {
		vec, err := enc.Encode(ctx, b.Title+" "+b.Description)
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = b.ID
		vecs[i] = vec
		meta[i] = artifact.BookMeta{BookID: b.ID, Title: b.Title, Authors: b.Authors}
	}
	if err := artifact.WriteEmbeddings(p.Embeddings, enc.Dimensions(), ids, vecs); err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteMeta(p.Meta, meta); err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteFactors(p.UserFactors, 2, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	itemRows := [][]float32{{1, 0}, {0, 1}, {1, 1}, {0.5, 0}, {0, 0.5}}
	if err := artifact.WriteFactors(p.ItemFactors, 2, itemRows); err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteIDMapTable(p.UserMap, map[int64]int{10: 0, 20: 1}); err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteIDMapTable(p.ItemMap, map[int64]int{1: 0, 2: 1, 3: 2, 4: 3, 5: 4}); err != nil {
		t.Fatal(err)
	}
	if err := artifact.WritePopularity(p.Popularity, pop); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestIntegration_RecommendPipeline(t *testing.T) {
	dir := t.TempDir()
	enc := encoder.NewHashEncoder(16)
	defer enc.Close()

	pop := []artifact.PopularityEntry{
		{BookID: 1, PopScore: 4.2}, {BookID: 2, PopScore: 3.9},
		{BookID: 3, PopScore: 3.5}, {BookID: 4, PopScore: 3.1},
		{BookID: 5, PopScore: 2.8},
	}
	p := writeArtifacts(t, filepath.Join(dir, "artifacts"), enc, pop)

	store, err := artifact.NewStore(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	engine := recommend.NewEngine(store, semantic.NewScorer(enc), recommend.DefaultConfig(), nil)
	ctx := context.Background()

	// Anonymous query: semantic-only, deterministic across runs.
	resp, err := engine.Recommend(ctx, models.RecommendQuery{Query: "desert planet politics", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 5 {
		t.Fatalf("total = %d, want 5", resp.Total)
	}
	again, err := engine.Recommend(ctx, models.RecommendQuery{Query: "desert planet politics", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	for i := range resp.Results {
		if resp.Results[i].BookID != again.Results[i].BookID {
			t.Fatalf("ranking not deterministic at position %d", i)
		}
	}

	// Known user: every candidate has a factor row, so all results carry
	// the combined provenance.
	userID := int64(10)
	resp, err = engine.Recommend(ctx, models.RecommendQuery{Query: "metaverse hacker", UserID: &userID, TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.Provenance != models.ProvenanceSemanticCF {
			t.Errorf("book %d provenance = %q", r.BookID, r.Provenance)
		}
	}

	// Empty query: popularity order.
	resp, err = engine.Recommend(ctx, models.RecommendQuery{TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].BookID != 1 || resp.Results[0].Provenance != models.ProvenancePopularity {
		t.Errorf("fallback head = %+v", resp.Results[0])
	}
}

func TestIntegration_RatingsToPopularityReload(t *testing.T) {
	dir := t.TempDir()
	enc := encoder.NewHashEncoder(16)
	defer enc.Close()

	pop := []artifact.PopularityEntry{
		{BookID: 1, PopScore: 1}, {BookID: 2, PopScore: 2},
		{BookID: 3, PopScore: 3}, {BookID: 4, PopScore: 4},
		{BookID: 5, PopScore: 5},
	}
	p := writeArtifacts(t, filepath.Join(dir, "artifacts"), enc, pop)

	store, err := artifact.NewStore(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	engine := recommend.NewEngine(store, semantic.NewScorer(enc), recommend.DefaultConfig(), nil)
	ctx := context.Background()

	// Seed the catalog and rate book 1 heavily.
	st, err := storage.NewSQLiteStorage(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.BatchCreateBooks(ctx, catalog); err != nil {
		t.Fatal(err)
	}
	for userID := int64(1); userID <= 20; userID++ {
		if err := st.CreateUser(ctx, &models.User{ID: userID, Name: "reader"}); err != nil {
			t.Fatal(err)
		}
		if err := st.UpsertRating(ctx, &models.Rating{UserID: userID, BookID: 1, Rating: 5}); err != nil {
			t.Fatal(err)
		}
	}

	// Rebuild the popularity table from ratings and hot-swap it.
	stats, err := st.RatingStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	table := popularity.Build(stats)
	if err := artifact.WritePopularity(p.Popularity, table); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Recommend(ctx, models.RecommendQuery{TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].BookID != 1 {
		t.Errorf("most popular after reload = %d, want 1", resp.Results[0].BookID)
	}
}

func TestIntegration_CatalogKeywordSearch(t *testing.T) {
	dir := t.TempDir()
	kwIdx, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer kwIdx.Close()

	ctx := context.Background()
	if err := kwIdx.IndexBooks(ctx, catalog); err != nil {
		t.Fatal(err)
	}
	hits, err := kwIdx.Search(ctx, "regency england", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].BookID != 3 {
		t.Errorf("keyword hits = %+v, want Emma first", hits)
	}
}
