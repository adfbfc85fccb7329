// Package library manages per-user book shelves.
package library

import (
	"context"
	"errors"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/storage"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// ErrInvalidBook rejects a book payload without a usable isbn and title.
var ErrInvalidBook = errors.New("a valid isbn and title are required")

// Service manages library membership.
type Service struct {
	users   storage.UserStore
	books   storage.BookStore
	library storage.LibraryStore
	log     *logger.Logger
}

// New constructs a library service.
func New(users storage.UserStore, books storage.BookStore, library storage.LibraryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("library")
	}
	return &Service{users: users, books: books, library: library, log: log}
}

// Add puts a book on the user's shelf, creating the shared book record on
// first sight. Adding a book already on the shelf is a conflict.
func (s *Service) Add(ctx context.Context, userID string, b book.Book) (book.Book, error) {
	b.ISBN = book.NormalizeISBN(b.ISBN)
	if b.ISBN == "" || b.Title == "" {
		return book.Book{}, ErrInvalidBook
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return book.Book{}, err
	}

	stored, err := s.books.UpsertBook(ctx, b)
	if err != nil {
		return book.Book{}, err
	}
	if err := s.library.AddToLibrary(ctx, userID, stored.ISBN); err != nil {
		return book.Book{}, err
	}
	return stored, nil
}

// Remove takes a book off the shelf. When the removed book was the user's
// current reading the pointer is cleared too.
func (s *Service) Remove(ctx context.Context, userID, isbn string) error {
	normalized := book.NormalizeISBN(isbn)

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.library.RemoveFromLibrary(ctx, userID, normalized); err != nil {
		return err
	}
	if u.CurrentReadingISBN == normalized {
		if err := s.users.SetCurrentReading(ctx, userID, ""); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

// List returns the user's shelf.
func (s *Service) List(ctx context.Context, userID string) ([]book.Book, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	shelf, err := s.library.ListLibrary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if shelf == nil {
		shelf = []book.Book{}
	}
	return shelf, nil
}
