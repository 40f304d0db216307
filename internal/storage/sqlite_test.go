package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/bookrs/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_BookCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	book := &models.Book{
		ID:          1,
		Title:       "Dune",
		Authors:     "Frank Herbert",
		Description: "Desert planet politics",
	}
	if err := store.CreateBook(ctx, book); err != nil {
		t.Fatal(err)
	}
	if book.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetBook(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Dune" || got.Authors != "Frank Herbert" {
		t.Errorf("got %+v", got)
	}

	book.Title = "Dune Messiah"
	if err := store.UpdateBook(ctx, book); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetBook(ctx, 1)
	if got.Title != "Dune Messiah" {
		t.Errorf("expected Dune Messiah, got %s", got.Title)
	}

	list, err := store.ListBooks(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 book, got %d", len(list))
	}

	if err := store.DeleteBook(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetBook(ctx, 1); err == nil {
		t.Error("expected error for deleted book")
	}

	if err := store.UpdateBook(ctx, &models.Book{ID: 42}); err == nil {
		t.Error("expected error updating missing book")
	}
}

func TestSQLiteStorage_BatchCreateBooks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	books := []*models.Book{
		{ID: 1, Title: "A"},
		{ID: 2, Title: "B"},
		{ID: 3, Title: "C"},
	}
	if err := store.BatchCreateBooks(ctx, books); err != nil {
		t.Fatal(err)
	}

	count, err := store.CountBooks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 books, got %d", count)
	}
}

func TestSQLiteStorage_Users(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	user := &models.User{ID: 10, Name: "Alice", Email: "alice@example.com"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetUser(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Alice" {
		t.Errorf("got %+v", got)
	}

	if _, err := store.GetUser(ctx, 99); err == nil {
		t.Error("expected error for missing user")
	}
}

func TestSQLiteStorage_Ratings(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.CreateBook(ctx, &models.Book{ID: 1, Title: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateBook(ctx, &models.Book{ID: 2, Title: "B"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateUser(ctx, &models.User{ID: 10, Name: "Alice"}); err != nil {
		t.Fatal(err)
	}

	if err := store.UpsertRating(ctx, &models.Rating{UserID: 10, BookID: 1, Rating: 4}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertRating(ctx, &models.Rating{UserID: 10, BookID: 2, Rating: 3}); err != nil {
		t.Fatal(err)
	}

	// Re-rating replaces, not duplicates.
	if err := store.UpsertRating(ctx, &models.Rating{UserID: 10, BookID: 1, Rating: 5}); err != nil {
		t.Fatal(err)
	}
	count, err := store.CountRatings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 ratings, got %d", count)
	}

	ratings, err := store.ListRatingsByUser(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ratings) != 2 {
		t.Fatalf("expected 2 ratings, got %d", len(ratings))
	}
	for _, r := range ratings {
		if r.BookID == 1 && r.Rating != 5 {
			t.Errorf("book 1 rating = %g, want 5", r.Rating)
		}
	}

	if err := store.UpsertRating(ctx, &models.Rating{UserID: 10, BookID: 1, Rating: 6}); err == nil {
		t.Error("expected error for rating above 5")
	}
	if err := store.UpsertRating(ctx, &models.Rating{UserID: 10, BookID: 1, Rating: -1}); err == nil {
		t.Error("expected error for negative rating")
	}
}

func TestSQLiteStorage_RatingStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if err := store.CreateBook(ctx, &models.Book{ID: id, Title: "Book"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.CreateUser(ctx, &models.User{ID: 10, Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateUser(ctx, &models.User{ID: 20, Name: "Bob"}); err != nil {
		t.Fatal(err)
	}

	ratings := []*models.Rating{
		{UserID: 10, BookID: 1, Rating: 4},
		{UserID: 20, BookID: 1, Rating: 2},
		{UserID: 10, BookID: 2, Rating: 5},
	}
	for _, r := range ratings {
		if err := store.UpsertRating(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.RatingStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected stats for all 3 books, got %d", len(stats))
	}
	if stats[0].BookID != 1 || stats[0].AvgRating != 3 || stats[0].NumRatings != 2 {
		t.Errorf("book 1 stats = %+v", stats[0])
	}
	if stats[1].BookID != 2 || stats[1].AvgRating != 5 || stats[1].NumRatings != 1 {
		t.Errorf("book 2 stats = %+v", stats[1])
	}
	if stats[2].BookID != 3 || stats[2].NumRatings != 0 {
		t.Errorf("unrated book 3 stats = %+v", stats[2])
	}
}
