// Package storage defines the persistence interfaces for the application.
package storage

import (
	"context"
	"errors"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/event"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
)

// Sentinel errors shared by all store implementations. Services translate
// these to response-level failures at the HTTP boundary.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	// UserExistsByEmailAndUsername reports whether a single account holds
	// both the email and the username.
	UserExistsByEmailAndUsername(ctx context.Context, email, username string) (bool, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	DeleteUser(ctx context.Context, id string) error
	// SetCurrentReading updates the current-reading pointer; an empty isbn
	// clears it.
	SetCurrentReading(ctx context.Context, userID, isbn string) error
}

// BookStore persists shared book reference data.
type BookStore interface {
	// UpsertBook inserts the book if its ISBN is unseen and returns the
	// stored record. Existing records are immutable and win over the input.
	UpsertBook(ctx context.Context, b book.Book) (book.Book, error)
	GetBook(ctx context.Context, isbn string) (book.Book, error)
}

// LibraryStore persists per-user library membership.
type LibraryStore interface {
	AddToLibrary(ctx context.Context, userID, isbn string) error
	RemoveFromLibrary(ctx context.Context, userID, isbn string) error
	ListLibrary(ctx context.Context, userID string) ([]book.Book, error)
	InLibrary(ctx context.Context, userID, isbn string) (bool, error)
}

// Top3Store persists a user's three favorite-book slots.
type Top3Store interface {
	// ReplaceTop3 deletes the user's existing rows and inserts the given
	// slots in one transaction.
	ReplaceTop3(ctx context.Context, userID string, slots []user.Top3Slot) error
	GetTop3(ctx context.Context, userID string) ([]user.Top3Slot, error)
}

// EventStore persists events and attendance.
type EventStore interface {
	CreateEvent(ctx context.Context, ev event.Event) (event.Event, error)
	GetEvent(ctx context.Context, id string) (event.Event, error)
	// ListEvents returns all events ordered by (date, time) ascending.
	ListEvents(ctx context.Context) ([]event.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	AddAttendee(ctx context.Context, eventID, userID string) error
	RemoveAttendee(ctx context.Context, eventID, userID string) error
	ListAttendees(ctx context.Context, eventID string) ([]user.User, error)
	ListEventsForUser(ctx context.Context, userID string) ([]event.Event, error)
}
