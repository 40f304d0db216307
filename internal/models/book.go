// Package models defines core data structures for the catalog, recommendation
// queries, and recommendation results.
package models

import "time"

// Book is a catalog entry. The ID is externally assigned and stable; it is the
// only identifier that ever crosses a package boundary (internal artifact row
// indices never leak out of the artifact layer).
type Book struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Authors     string    `json:"authors" db:"authors"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// User is a registered reader. A user may or may not have a latent factor row;
// users absent from the factor training data are cold, not erroneous.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Rating is a user's rating for a book on a 0-5 scale.
type Rating struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	BookID    int64     `json:"book_id" db:"book_id"`
	Rating    float64   `json:"rating" db:"rating"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RatingStat is the aggregate rating picture for one book, the input to the
// popularity scorer.
type RatingStat struct {
	BookID     int64   `json:"book_id" db:"book_id"`
	AvgRating  float64 `json:"avg_rating" db:"avg_rating"`
	NumRatings int64   `json:"num_ratings" db:"num_ratings"`
}
