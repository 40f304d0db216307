// Package keyword provides keyword (BM25) search over the book catalog.
package keyword

import (
	"context"

	"github.com/hyperjump/bookrs/internal/models"
)

// KeywordIndex defines keyword search operations over books.
type KeywordIndex interface {
	Index(ctx context.Context, book *models.Book) error
	IndexBooks(ctx context.Context, books []*models.Book) error
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, bookID int64) error
	// DocCount returns the total number of indexed books.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	BookID int64
	Score  float64
}
