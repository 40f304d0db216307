// Package artifact loads, validates, and owns the precomputed model artifacts:
// the book embedding matrix with its parallel metadata table, the ALS user and
// item factor matrices with their id-to-row mapping tables, and the popularity
// table. Everything is validated at load time; after that a Bundle is immutable
// and shared freely across requests. Raw row indices never leave this package
// except through the idmap translation.
package artifact

import (
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/bookrs/internal/idmap"
)

// BookMeta is one row of the embedding metadata table. Row order matches the
// embedding matrix row-for-row; that correspondence is verified at load.
type BookMeta struct {
	BookID  int64  `json:"book_id"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
}

// PopularityEntry is one row of the popularity table.
type PopularityEntry struct {
	BookID     int64   `json:"book_id"`
	AvgRating  float64 `json:"avg_rating"`
	NumRatings int64   `json:"num_ratings"`
	PopScore   float64 `json:"pop_score"`
}

// Embeddings is the book embedding matrix. Row index is internal only; IDs
// carries the external book id per row and Norms the precomputed L2 norm used
// by cosine scoring.
type Embeddings struct {
	Dim     int
	IDs     []int64
	Vectors [][]float32
	Norms   []float64
}

// Len returns the number of embedded books.
func (e *Embeddings) Len() int { return len(e.IDs) }

// Factors is a latent factor matrix (users x k or items x k).
type Factors struct {
	K    int
	Rows [][]float32
}

// Len returns the number of factor rows.
func (f *Factors) Len() int { return len(f.Rows) }

// Row returns the latent vector at row, or nil when out of range.
func (f *Factors) Row(row int) []float32 {
	if row < 0 || row >= len(f.Rows) {
		return nil
	}
	return f.Rows[row]
}

// Bundle is one immutable snapshot of all artifacts. Scorers read a Bundle and
// never an individual artifact, so a request can never observe a new mapper
// against an old matrix.
type Bundle struct {
	Embeddings  *Embeddings
	Meta        []BookMeta
	UserFactors *Factors
	ItemFactors *Factors
	UserMap     *idmap.Map
	ItemMap     *idmap.Map
	// Popularity is sorted by PopScore descending, ties by ascending book id.
	Popularity []PopularityEntry

	metaByID map[int64]BookMeta
	popByID  map[int64]float64
	loadedAt time.Time
}

// newBundle wires the lookup tables and fixes the popularity ordering. It
// assumes per-artifact validation already happened in the loader.
func newBundle(emb *Embeddings, meta []BookMeta, uf, itf *Factors, um, im *idmap.Map, pop []PopularityEntry) *Bundle {
	b := &Bundle{
		Embeddings:  emb,
		Meta:        meta,
		UserFactors: uf,
		ItemFactors: itf,
		UserMap:     um,
		ItemMap:     im,
		Popularity:  pop,
		metaByID:    make(map[int64]BookMeta, len(meta)),
		popByID:     make(map[int64]float64, len(pop)),
		loadedAt:    time.Now(),
	}
	for _, m := range meta {
		b.metaByID[m.BookID] = m
	}
	sort.SliceStable(b.Popularity, func(i, j int) bool {
		if b.Popularity[i].PopScore != b.Popularity[j].PopScore {
			return b.Popularity[i].PopScore > b.Popularity[j].PopScore
		}
		return b.Popularity[i].BookID < b.Popularity[j].BookID
	})
	for _, p := range b.Popularity {
		b.popByID[p.BookID] = p.PopScore
	}
	return b
}

// Book returns the metadata for a book id.
func (b *Bundle) Book(id int64) (BookMeta, bool) {
	m, ok := b.metaByID[id]
	return m, ok
}

// PopScore returns the popularity scalar for a book id, false when the book
// has no popularity row.
func (b *Bundle) PopScore(id int64) (float64, bool) {
	s, ok := b.popByID[id]
	return s, ok
}

// LoadedAt returns when this snapshot was built.
func (b *Bundle) LoadedAt() time.Time { return b.loadedAt }

// Summary returns a one-line description for logs and status endpoints.
func (b *Bundle) Summary() string {
	return fmt.Sprintf("%d books embedded (dim %d), %d users x %d items in factor space (k %d), %d popularity rows",
		b.Embeddings.Len(), b.Embeddings.Dim,
		b.UserFactors.Len(), b.ItemFactors.Len(), b.UserFactors.K,
		len(b.Popularity))
}
