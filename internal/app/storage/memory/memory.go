// Package memory provides an in-memory store used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/event"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/app/storage"
)

// Store implements every storage interface with process-local maps.
type Store struct {
	mu        sync.RWMutex
	users     map[string]user.User
	books     map[string]book.Book
	events    map[string]event.Event
	library   map[string]map[string]time.Time // userID -> isbn -> added
	attendees map[string]map[string]struct{}  // eventID -> userID
	top3      map[string][]user.Top3Slot
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.BookStore = (*Store)(nil)
var _ storage.LibraryStore = (*Store)(nil)
var _ storage.Top3Store = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:     make(map[string]user.User),
		books:     make(map[string]book.Book),
		events:    make(map[string]event.Event),
		library:   make(map[string]map[string]time.Time),
		attendees: make(map[string]map[string]struct{}),
		top3:      make(map[string][]user.Top3Slot),
	}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	// Duplicate detection matches UserExistsByEmailAndUsername: both fields
	// must collide. Single-column uniqueness is a database concern.
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) && strings.EqualFold(existing.Username, u.Username) {
			return user.User{}, storage.ErrConflict
		}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) UserExistsByEmailAndUsername(_ context.Context, email, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	delete(s.library, id)
	delete(s.top3, id)
	for _, members := range s.attendees {
		delete(members, id)
	}
	return nil
}

func (s *Store) SetCurrentReading(_ context.Context, userID, isbn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.CurrentReadingISBN = isbn
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

// --- BookStore --------------------------------------------------------------

func (s *Store) UpsertBook(_ context.Context, b book.Book) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.books[b.ISBN]; ok {
		return existing, nil
	}
	s.books[b.ISBN] = b
	return b, nil
}

func (s *Store) GetBook(_ context.Context, isbn string) (book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[isbn]
	if !ok {
		return book.Book{}, storage.ErrNotFound
	}
	return b, nil
}

// --- LibraryStore -----------------------------------------------------------

func (s *Store) AddToLibrary(_ context.Context, userID, isbn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shelf := s.library[userID]
	if shelf == nil {
		shelf = make(map[string]time.Time)
		s.library[userID] = shelf
	}
	if _, ok := shelf[isbn]; ok {
		return storage.ErrConflict
	}
	shelf[isbn] = time.Now().UTC()
	return nil
}

func (s *Store) RemoveFromLibrary(_ context.Context, userID, isbn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shelf := s.library[userID]
	if _, ok := shelf[isbn]; !ok {
		return storage.ErrNotFound
	}
	delete(shelf, isbn)
	return nil
}

func (s *Store) ListLibrary(_ context.Context, userID string) ([]book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []book.Book
	for isbn := range s.library[userID] {
		if b, ok := s.books[isbn]; ok {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *Store) InLibrary(_ context.Context, userID, isbn string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.library[userID][isbn]
	return ok, nil
}

// --- Top3Store --------------------------------------------------------------

func (s *Store) ReplaceTop3(_ context.Context, userID string, slots []user.Top3Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]user.Top3Slot, len(slots))
	copy(copied, slots)
	sort.Slice(copied, func(i, j int) bool { return copied[i].Position < copied[j].Position })
	s.top3[userID] = copied
	return nil
}

func (s *Store) GetTop3(_ context.Context, userID string) ([]user.Top3Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := s.top3[userID]
	result := make([]user.Top3Slot, len(slots))
	copy(result, slots)
	return result, nil
}

// --- EventStore -------------------------------------------------------------

func (s *Store) CreateEvent(_ context.Context, ev event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = time.Now().UTC()
	s.events[ev.ID] = ev
	return ev, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return event.Event{}, storage.ErrNotFound
	}
	return ev, nil
}

func (s *Store) ListEvents(_ context.Context) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]event.Event, 0, len(s.events))
	for _, ev := range s.events {
		result = append(result, ev)
	}
	sortEvents(result)
	return result, nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.events, id)
	delete(s.attendees, id)
	return nil
}

func (s *Store) AddAttendee(_ context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return storage.ErrNotFound
	}
	members := s.attendees[eventID]
	if members == nil {
		members = make(map[string]struct{})
		s.attendees[eventID] = members
	}
	if _, ok := members[userID]; ok {
		return storage.ErrConflict
	}
	members[userID] = struct{}{}
	return nil
}

func (s *Store) RemoveAttendee(_ context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.attendees[eventID]
	if _, ok := members[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(members, userID)
	return nil
}

func (s *Store) ListAttendees(_ context.Context, eventID string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[eventID]; !ok {
		return nil, storage.ErrNotFound
	}
	var result []user.User
	for userID := range s.attendees[eventID] {
		if u, ok := s.users[userID]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (s *Store) ListEventsForUser(_ context.Context, userID string) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for eventID, members := range s.attendees {
		if _, ok := members[userID]; ok {
			if ev, found := s.events[eventID]; found {
				result = append(result, ev)
			}
		}
	}
	sortEvents(result)
	return result, nil
}

func sortEvents(events []event.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Time < events[j].Time
	})
}
