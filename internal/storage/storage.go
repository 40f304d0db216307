// Package storage defines the persistence interface for the book catalog,
// users, and ratings.
package storage

import (
	"context"

	"github.com/hyperjump/bookrs/internal/models"
)

// Storage defines catalog persistence operations.
type Storage interface {
	// Book operations
	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	UpdateBook(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, id int64) error
	ListBooks(ctx context.Context, offset, limit int) ([]*models.Book, error)
	BatchCreateBooks(ctx context.Context, books []*models.Book) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)

	// Rating operations
	UpsertRating(ctx context.Context, rating *models.Rating) error
	ListRatingsByUser(ctx context.Context, userID int64) ([]*models.Rating, error)
	RatingStats(ctx context.Context) ([]models.RatingStat, error)

	// Stats
	CountBooks(ctx context.Context) (int64, error)
	CountRatings(ctx context.Context) (int64, error)

	Close() error
}
