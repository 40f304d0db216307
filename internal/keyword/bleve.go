// Package keyword provides Bleve implementation of KeywordIndex.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/bookrs/internal/models"
)

// bleveBook is the indexed shape of a book. Only searchable text goes in.
type bleveBook struct {
	Title       string `json:"title"`
	Authors     string `json:"authors"`
	Description string `json:"description"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused; remove the directory to force a full re-index after a
// mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query for an
	// exact word in a title matches it verbatim.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("authors", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	im.AddDocumentMapping("book", docMapping)
	im.DefaultType = "book"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a single book under its id.
func (b *BleveIndex) Index(ctx context.Context, book *models.Book) error {
	return b.index.Index(strconv.FormatInt(book.ID, 10), bleveBook{
		Title:       book.Title,
		Authors:     book.Authors,
		Description: book.Description,
	})
}

// IndexBooks indexes books in one batch.
func (b *BleveIndex) IndexBooks(ctx context.Context, books []*models.Book) error {
	batch := b.index.NewBatch()
	for _, book := range books {
		err := batch.Index(strconv.FormatInt(book.ID, 10), bleveBook{
			Title:       book.Title,
			Authors:     book.Authors,
			Description: book.Description,
		})
		if err != nil {
			return err
		}
	}
	return b.index.Batch(batch)
}

// Search runs a match query over all text fields and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	q := bleve.NewMatchQuery(query)
	search := bleve.NewSearchRequest(q)
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric document id %q in index", hit.ID)
		}
		out = append(out, &KeywordResult{BookID: id, Score: hit.Score})
	}
	return out, nil
}

// Delete removes a book from the index.
func (b *BleveIndex) Delete(ctx context.Context, bookID int64) error {
	return b.index.Delete(strconv.FormatInt(bookID, 10))
}

// DocCount returns the total number of indexed books.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
