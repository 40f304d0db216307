// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/bookrs/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		authors TEXT,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ratings (
		user_id INTEGER NOT NULL,
		book_id INTEGER NOT NULL,
		rating REAL NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, book_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_ratings_book_id ON ratings(book_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateBook inserts a book. The id is caller-assigned and must match the id
// used in the model artifacts.
func (s *SQLiteStorage) CreateBook(ctx context.Context, book *models.Book) error {
	book.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (id, title, authors, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		book.ID, book.Title, book.Authors, book.Description, book.CreatedAt,
	)
	return err
}

// GetBook returns a book by ID.
func (s *SQLiteStorage) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, authors, description, created_at
		 FROM books WHERE id = ?`, id,
	).Scan(&book.ID, &book.Title, &book.Authors, &book.Description, &book.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook updates an existing book.
func (s *SQLiteStorage) UpdateBook(ctx context.Context, book *models.Book) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE books SET title = ?, authors = ?, description = ? WHERE id = ?`,
		book.Title, book.Authors, book.Description, book.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("book not found: %d", book.ID)
	}
	return nil
}

// DeleteBook removes a book by ID. Its ratings go with it.
func (s *SQLiteStorage) DeleteBook(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	return err
}

// ListBooks returns books with offset and limit, ordered by id.
func (s *SQLiteStorage) ListBooks(ctx context.Context, offset, limit int) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, authors, description, created_at
		 FROM books ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(&book.ID, &book.Title, &book.Authors, &book.Description, &book.CreatedAt); err != nil {
			return nil, err
		}
		books = append(books, &book)
	}
	return books, rows.Err()
}

// BatchCreateBooks inserts multiple books in a transaction.
func (s *SQLiteStorage) BatchCreateBooks(ctx context.Context, books []*models.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO books (id, title, authors, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, book := range books {
		book.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, book.ID, book.Title, book.Authors, book.Description, book.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateUser inserts a user.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.CreatedAt,
	)
	return err
}

// GetUser returns a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertRating inserts or replaces a user's rating for a book. Ratings are on
// a 0-5 scale.
func (s *SQLiteStorage) UpsertRating(ctx context.Context, rating *models.Rating) error {
	if rating.Rating < 0 || rating.Rating > 5 {
		return fmt.Errorf("rating %g out of range [0, 5]", rating.Rating)
	}
	rating.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (user_id, book_id, rating, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, book_id) DO UPDATE SET rating = excluded.rating, updated_at = excluded.updated_at`,
		rating.UserID, rating.BookID, rating.Rating, rating.UpdatedAt,
	)
	return err
}

// ListRatingsByUser returns all ratings by a user, most recent first.
func (s *SQLiteStorage) ListRatingsByUser(ctx context.Context, userID int64) ([]*models.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, book_id, rating, updated_at
		 FROM ratings WHERE user_id = ? ORDER BY updated_at DESC, book_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []*models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.UserID, &r.BookID, &r.Rating, &r.UpdatedAt); err != nil {
			return nil, err
		}
		ratings = append(ratings, &r)
	}
	return ratings, rows.Err()
}

// RatingStats returns per-book rating aggregates for every book in the
// catalog. Books with no ratings appear with a zero count.
func (s *SQLiteStorage) RatingStats(ctx context.Context) ([]models.RatingStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, COALESCE(AVG(r.rating), 0), COUNT(r.rating)
		 FROM books b LEFT JOIN ratings r ON r.book_id = b.id
		 GROUP BY b.id ORDER BY b.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.RatingStat
	for rows.Next() {
		var st models.RatingStat
		if err := rows.Scan(&st.BookID, &st.AvgRating, &st.NumRatings); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// CountBooks returns the total number of books.
func (s *SQLiteStorage) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

// CountRatings returns the total number of ratings.
func (s *SQLiteStorage) CountRatings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
