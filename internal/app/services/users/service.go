// Package users implements account lifecycle, authentication, profile data,
// reading state and top-3 favorites.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/app/storage"
	"github.com/bookcircle/bookcircle/internal/auth"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// ErrInvalidCredentials is returned for any login failure. The caller cannot
// tell a missing account from a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidTop3 rejects a top-3 update that is not exactly three slots.
var ErrInvalidTop3 = errors.New("top3 requires exactly three slots")

// ErrInvalidBook rejects a book payload without a usable isbn and title.
var ErrInvalidBook = errors.New("a valid isbn and title are required")

// ChatTokens mints chat-provider connection tokens. Optional; login omits the
// chat token when unset or failing.
type ChatTokens interface {
	UserToken(userID string) (string, error)
}

// Service manages user accounts.
type Service struct {
	users   storage.UserStore
	books   storage.BookStore
	library storage.LibraryStore
	top3    storage.Top3Store
	tokens  *auth.TokenManager
	chat    ChatTokens
	log     *logger.Logger
}

// New constructs a users service.
func New(users storage.UserStore, books storage.BookStore, library storage.LibraryStore, top3 storage.Top3Store, tokens *auth.TokenManager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{users: users, books: books, library: library, top3: top3, tokens: tokens, log: log}
}

// AttachChatTokens wires the optional chat token minter used at login.
func (s *Service) AttachChatTokens(chat ChatTokens) {
	s.chat = chat
}

// Signup registers a new account. An account holding both the email and the
// username already is a conflict; the stored hash never leaves this layer
// unserialized.
func (s *Service) Signup(ctx context.Context, username, email, password string) (user.User, error) {
	if username == "" || email == "" || password == "" {
		return user.User{}, fmt.Errorf("username, email and password are required")
	}

	exists, err := s.users.UserExistsByEmailAndUsername(ctx, email, username)
	if err != nil {
		return user.User{}, err
	}
	if exists {
		return user.User{}, storage.ErrConflict
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return user.User{}, err
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Username: username,
		Email:    email,
		Password: hash,
		IsActive: true,
	})
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", created.ID).Infof("user %s signed up", created.Username)
	return created, nil
}

// LoginResult carries everything a successful login returns. StreamToken is
// empty when chat token generation is unavailable or failed.
type LoginResult struct {
	User         user.User
	AccessToken  string
	RefreshToken string
	StreamToken  string
}

// Login authenticates by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !auth.CheckPassword(password, u.Password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccessToken(u.ID)
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(u.ID)
	if err != nil {
		return LoginResult{}, err
	}

	result := LoginResult{User: u, AccessToken: access, RefreshToken: refresh}
	if s.chat != nil {
		streamToken, err := s.chat.UserToken(u.ID)
		if err != nil {
			// Chat is auxiliary; login still succeeds without its token.
			s.log.WithError(err).WithField("user_id", u.ID).Warn("chat token generation failed")
		} else {
			result.StreamToken = streamToken
		}
	}
	return result, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is never rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", auth.ErrInvalidToken
		}
		return "", err
	}
	return s.tokens.IssueAccessToken(userID)
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.users.GetUser(ctx, id)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}

// Update overwrites mutable account fields. Blank fields keep their stored
// value; a non-empty password is re-hashed.
func (s *Service) Update(ctx context.Context, id, username, email, password string) (user.User, error) {
	existing, err := s.users.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if username != "" {
		existing.Username = username
	}
	if email != "" {
		existing.Email = email
	}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return user.User{}, err
		}
		existing.Password = hash
	}

	updated, err := s.users.UpdateUser(ctx, existing)
	if err != nil {
		return user.User{}, err
	}
	s.log.Infof("user %s updated", id)
	return updated, nil
}

// Delete removes an account. Attendance, library and top-3 rows cascade.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Infof("user %s deleted", id)
	return nil
}

// Profile is the about/genres slice of an account.
type Profile struct {
	AboutText      string   `json:"about_text"`
	FavoriteGenres []string `json:"favorite_genres"`
}

// GetProfile returns a user's profile fields.
func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	genres := u.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}
	return Profile{AboutText: u.AboutText, FavoriteGenres: genres}, nil
}

// UpdateProfile updates about_text and favorite_genres independently. A nil
// pointer leaves the field untouched.
func (s *Service) UpdateProfile(ctx context.Context, id string, about *string, genres *[]string) (Profile, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if about != nil {
		u.AboutText = *about
	}
	if genres != nil {
		u.FavoriteGenres = *genres
	}
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return Profile{}, err
	}
	return s.GetProfile(ctx, id)
}

// SetCurrentReading marks a book as in progress. The book is created if
// unseen and always ends up in the user's library.
func (s *Service) SetCurrentReading(ctx context.Context, userID string, b book.Book) (book.Book, error) {
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
	if err := s.library.AddToLibrary(ctx, userID, stored.ISBN); err != nil && !errors.Is(err, storage.ErrConflict) {
		return book.Book{}, err
	}
	if err := s.users.SetCurrentReading(ctx, userID, stored.ISBN); err != nil {
		return book.Book{}, err
	}
	return stored, nil
}

// GetCurrentReading returns the in-progress book, or ok=false when none is
// set.
func (s *Service) GetCurrentReading(ctx context.Context, userID string) (book.Book, bool, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return book.Book{}, false, err
	}
	if u.CurrentReadingISBN == "" {
		return book.Book{}, false, nil
	}
	b, err := s.books.GetBook(ctx, u.CurrentReadingISBN)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return book.Book{}, false, nil
		}
		return book.Book{}, false, err
	}
	return b, true, nil
}

// ClearCurrentReading clears the in-progress pointer. When the request names
// an isbn different from the pointer it removes that book from the library
// instead, leaving the pointer alone.
func (s *Service) ClearCurrentReading(ctx context.Context, userID, isbn string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	normalized := book.NormalizeISBN(isbn)
	if normalized != "" && normalized != u.CurrentReadingISBN {
		return s.library.RemoveFromLibrary(ctx, userID, normalized)
	}
	return s.users.SetCurrentReading(ctx, userID, "")
}

// ReadingHistory returns the library minus the current book.
func (s *Service) ReadingHistory(ctx context.Context, userID string) ([]book.Book, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	shelf, err := s.library.ListLibrary(ctx, userID)
	if err != nil {
		return nil, err
	}
	history := make([]book.Book, 0, len(shelf))
	for _, b := range shelf {
		if b.ISBN == u.CurrentReadingISBN {
			continue
		}
		history = append(history, b)
	}
	return history, nil
}

// Top3Entry is one favorite slot on input; a nil Book leaves the slot empty.
type Top3Entry struct {
	Book *book.Book
}

// Top3View is one favorite slot on output.
type Top3View struct {
	Position int        `json:"position"`
	Book     *book.Book `json:"book"`
}

// SetTop3 replaces the user's favorites with exactly three ordered slots.
// Duplicate isbns across slots reject the whole update; referenced books are
// created lazily.
func (s *Service) SetTop3(ctx context.Context, userID string, entries []Top3Entry) error {
	if len(entries) != 3 {
		return ErrInvalidTop3
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}

	seen := make(map[string]bool, 3)
	slots := make([]user.Top3Slot, 0, 3)
	for i, entry := range entries {
		slot := user.Top3Slot{Position: i + 1}
		if entry.Book != nil {
			b := *entry.Book
			b.ISBN = book.NormalizeISBN(b.ISBN)
			if b.ISBN == "" || b.Title == "" {
				return fmt.Errorf("slot %d: %w", i+1, ErrInvalidBook)
			}
			if seen[b.ISBN] {
				return fmt.Errorf("duplicate isbn %s: %w", b.ISBN, storage.ErrConflict)
			}
			seen[b.ISBN] = true

			stored, err := s.books.UpsertBook(ctx, b)
			if err != nil {
				return err
			}
			slot.ISBN = stored.ISBN
		}
		slots = append(slots, slot)
	}
	return s.top3.ReplaceTop3(ctx, userID, slots)
}

// GetTop3 returns the three favorite slots with resolved books. Slots never
// set are returned empty so callers always see three positions.
func (s *Service) GetTop3(ctx context.Context, userID string) ([]Top3View, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	slots, err := s.top3.GetTop3(ctx, userID)
	if err != nil {
		return nil, err
	}

	byPosition := make(map[int]user.Top3Slot, len(slots))
	for _, slot := range slots {
		byPosition[slot.Position] = slot
	}

	result := make([]Top3View, 0, 3)
	for position := 1; position <= 3; position++ {
		view := Top3View{Position: position}
		if slot, ok := byPosition[position]; ok && slot.ISBN != "" {
			b, err := s.books.GetBook(ctx, slot.ISBN)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			if err == nil {
				view.Book = &b
			}
		}
		result = append(result, view)
	}
	return result, nil
}
