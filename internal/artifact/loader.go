package artifact

import (
	"fmt"
	"path/filepath"

	"github.com/hyperjump/bookrs/internal/idmap"
)

// Paths locates the artifact files. All paths are absolute by the time they
// reach the loader (the config layer expands them).
type Paths struct {
	Embeddings  string
	Meta        string
	UserFactors string
	ItemFactors string
	UserMap     string
	ItemMap     string
	Popularity  string
}

// DefaultPaths returns conventional file names under dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Embeddings:  filepath.Join(dir, "book_embeddings.vec"),
		Meta:        filepath.Join(dir, "book_meta.json"),
		UserFactors: filepath.Join(dir, "als_user_factors.bin"),
		ItemFactors: filepath.Join(dir, "als_item_factors.bin"),
		UserMap:     filepath.Join(dir, "als_user_map.json"),
		ItemMap:     filepath.Join(dir, "als_item_map.json"),
		Popularity:  filepath.Join(dir, "popularity.json"),
	}
}

// Load reads and cross-validates every artifact, returning one immutable
// Bundle. Any missing or malformed artifact is a hard error naming the file
// and the violated invariant: serving with a silently wrong bundle is worse
// than not serving. A missing file surfaces the underlying os error so
// operators can tell "not trained yet" from "corrupted".
func Load(p Paths) (*Bundle, error) {
	emb, err := ReadEmbeddings(p.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("embeddings %s: %w", p.Embeddings, err)
	}
	if emb.Len() == 0 {
		return nil, fmt.Errorf("embeddings %s: no rows", p.Embeddings)
	}

	meta, err := ReadMeta(p.Meta)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", p.Meta, err)
	}
	if len(meta) != emb.Len() {
		return nil, fmt.Errorf("metadata %s: %d rows but embeddings have %d; the tables must be parallel",
			p.Meta, len(meta), emb.Len())
	}
	for i, m := range meta {
		if m.BookID != emb.IDs[i] {
			return nil, fmt.Errorf("metadata %s: row %d has book id %d but embeddings row %d has %d; row order diverged",
				p.Meta, i, m.BookID, i, emb.IDs[i])
		}
	}

	userFactors, err := ReadFactors(p.UserFactors)
	if err != nil {
		return nil, fmt.Errorf("user factors %s: %w", p.UserFactors, err)
	}
	itemFactors, err := ReadFactors(p.ItemFactors)
	if err != nil {
		return nil, fmt.Errorf("item factors %s: %w", p.ItemFactors, err)
	}
	if userFactors.K != itemFactors.K {
		return nil, fmt.Errorf("factor matrices disagree on k: users %d (%s) vs items %d (%s)",
			userFactors.K, p.UserFactors, itemFactors.K, p.ItemFactors)
	}
	if userFactors.Len() == 0 {
		return nil, fmt.Errorf("user factors %s: no rows", p.UserFactors)
	}
	if itemFactors.Len() == 0 {
		return nil, fmt.Errorf("item factors %s: no rows", p.ItemFactors)
	}

	userMap, err := loadMap(p.UserMap, userFactors.Len(), "user factors")
	if err != nil {
		return nil, err
	}
	itemMap, err := loadMap(p.ItemMap, itemFactors.Len(), "item factors")
	if err != nil {
		return nil, err
	}

	pop, err := ReadPopularity(p.Popularity)
	if err != nil {
		return nil, fmt.Errorf("popularity %s: %w", p.Popularity, err)
	}
	seen := make(map[int64]struct{}, len(pop))
	for _, entry := range pop {
		if entry.PopScore < 0 {
			return nil, fmt.Errorf("popularity %s: book %d has negative score %g",
				p.Popularity, entry.BookID, entry.PopScore)
		}
		if _, dup := seen[entry.BookID]; dup {
			return nil, fmt.Errorf("popularity %s: duplicate book id %d", p.Popularity, entry.BookID)
		}
		seen[entry.BookID] = struct{}{}
	}

	return newBundle(emb, meta, userFactors, itemFactors, userMap, itemMap, pop), nil
}

// loadMap reads a mapping table and verifies it against the factor matrix it
// addresses: exactly one mapping entry per factor row. A JSON object with a
// duplicated external id collapses silently during parsing, which this size
// check catches.
func loadMap(path string, factorRows int, matrixName string) (*idmap.Map, error) {
	table, err := ReadIDMapTable(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	if len(table) != factorRows {
		return nil, fmt.Errorf("mapping %s: %d entries but %s matrix has %d rows",
			path, len(table), matrixName, factorRows)
	}
	m, err := idmap.New(table)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return m, nil
}
