package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/app/storage"
)

func TestTranslate(t *testing.T) {
	if translate(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if !errors.Is(translate(sql.ErrNoRows), storage.ErrNotFound) {
		t.Fatalf("sql.ErrNoRows should become ErrNotFound")
	}
	if !errors.Is(translate(&pq.Error{Code: "23505"}), storage.ErrConflict) {
		t.Fatalf("unique violation should become ErrConflict")
	}
	if !errors.Is(translate(&pq.Error{Code: "23503"}), storage.ErrNotFound) {
		t.Fatalf("foreign key violation should become ErrNotFound")
	}
	other := errors.New("boom")
	if translate(other) != other {
		t.Fatalf("unrelated errors should pass through")
	}
}

func TestCreateUserConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	store := New(db)
	_, err = store.CreateUser(context.Background(), user.User{Username: "ana", Email: "ana@example.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetBookNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT isbn, title, author, publisher, thumbnail").
		WithArgs("9780307474728").
		WillReturnError(sql.ErrNoRows)

	store := New(db)
	_, err = store.GetBook(context.Background(), "9780307474728")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertBookExistingWins(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO books").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT isbn, title, author, publisher, thumbnail").
		WithArgs("9780307474728").
		WillReturnRows(sqlmock.NewRows([]string{"isbn", "title", "author", "publisher", "thumbnail"}).
			AddRow("9780307474728", "Cien años de soledad", "Gabriel García Márquez", "Vintage", ""))

	store := New(db)
	got, err := store.UpsertBook(context.Background(), book.Book{ISBN: "9780307474728", Title: "different title"})
	if err != nil {
		t.Fatalf("upsert book: %v", err)
	}
	if got.Title != "Cien años de soledad" {
		t.Fatalf("stored record should win, got title %q", got.Title)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceTop3Transaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_top3").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO user_top3").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_top3").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := New(db)
	slots := []user.Top3Slot{{Position: 1, ISBN: "9780307474728"}, {Position: 2}}
	if err := store.ReplaceTop3(context.Background(), "user-1", slots); err != nil {
		t.Fatalf("replace top3: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)

	ctx := context.Background()
	b, err := store.UpsertBook(ctx, book.Book{ISBN: "9780307474728", Title: "Cien años de soledad"})
	if err != nil {
		t.Fatalf("upsert book: %v", err)
	}

	u, err := store.CreateUser(ctx, user.User{Username: "ana", Email: "ana@example.com", Password: "bcrypt:x", IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := store.AddToLibrary(ctx, u.ID, b.ISBN); err != nil {
		t.Fatalf("add to library: %v", err)
	}
}
