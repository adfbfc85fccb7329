package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/event"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.BookStore = (*Store)(nil)
var _ storage.LibraryStore = (*Store)(nil)
var _ storage.Top3Store = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// translate maps driver-level failures onto the storage sentinels so that
// callers never depend on lib/pq.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return storage.ErrConflict
		case "23503": // foreign_key_violation
			return storage.ErrNotFound
		}
	}
	return err
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, username, email, password, is_active, avatar_url, current_reading_isbn, about_text, favorite_genres, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password, is_active, avatar_url, current_reading_isbn, about_text, favorite_genres, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)
	`, u.ID, u.Username, u.Email, u.Password, u.IsActive, u.AvatarURL, u.CurrentReadingISBN, u.AboutText, user.EncodeGenres(u.FavoriteGenres), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	return scanUser(row)
}

func (s *Store) UserExistsByEmailAndUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE lower(email) = lower($1) AND lower(username) = lower($2)
		)
	`, email, username).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, password = $4, is_active = $5, avatar_url = $6, about_text = $7, favorite_genres = $8, updated_at = $9
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.Password, u.IsActive, u.AvatarURL, u.AboutText, user.EncodeGenres(u.FavoriteGenres), u.UpdatedAt)
	if err != nil {
		return user.User{}, translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM users WHERE id = $1
	`, id)
	if err != nil {
		return translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) SetCurrentReading(ctx context.Context, userID, isbn string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET current_reading_isbn = NULLIF($2, ''), updated_at = $3
		WHERE id = $1
	`, userID, isbn, time.Now().UTC())
	if err != nil {
		return translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		u       user.User
		current sql.NullString
		genres  sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.IsActive, &u.AvatarURL, &current, &u.AboutText, &genres, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, translate(err)
	}
	if current.Valid {
		u.CurrentReadingISBN = current.String
	}
	u.FavoriteGenres = user.DecodeGenres(genres.String)
	return u, nil
}

// --- BookStore --------------------------------------------------------------

func (s *Store) UpsertBook(ctx context.Context, b book.Book) (book.Book, error) {
	// First writer wins: an existing record is the canonical one.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (isbn, title, author, publisher, thumbnail)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (isbn) DO NOTHING
	`, b.ISBN, b.Title, b.Author, b.Publisher, b.Thumbnail)
	if err != nil {
		return book.Book{}, translate(err)
	}
	return s.GetBook(ctx, b.ISBN)
}

func (s *Store) GetBook(ctx context.Context, isbn string) (book.Book, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT isbn, title, author, publisher, thumbnail
		FROM books
		WHERE isbn = $1
	`, isbn)

	var b book.Book
	if err := row.Scan(&b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.Thumbnail); err != nil {
		return book.Book{}, translate(err)
	}
	return b, nil
}

// --- LibraryStore -----------------------------------------------------------

func (s *Store) AddToLibrary(ctx context.Context, userID, isbn string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO library_books (user_id, book_isbn, added_at)
		VALUES ($1, $2, $3)
	`, userID, isbn, time.Now().UTC())
	return translate(err)
}

func (s *Store) RemoveFromLibrary(ctx context.Context, userID, isbn string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM library_books WHERE user_id = $1 AND book_isbn = $2
	`, userID, isbn)
	if err != nil {
		return translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListLibrary(ctx context.Context, userID string) ([]book.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.isbn, b.title, b.author, b.publisher, b.thumbnail
		FROM library_books lb
		JOIN books b ON b.isbn = lb.book_isbn
		WHERE lb.user_id = $1
		ORDER BY lb.added_at
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []book.Book
	for rows.Next() {
		var b book.Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Publisher, &b.Thumbnail); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) InLibrary(ctx context.Context, userID, isbn string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM library_books WHERE user_id = $1 AND book_isbn = $2
		)
	`, userID, isbn).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

// --- Top3Store --------------------------------------------------------------

func (s *Store) ReplaceTop3(ctx context.Context, userID string, slots []user.Top3Slot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM user_top3 WHERE user_id = $1
	`, userID); err != nil {
		return translate(err)
	}
	for _, slot := range slots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_top3 (user_id, position, book_isbn)
			VALUES ($1, $2, NULLIF($3, ''))
		`, userID, slot.Position, slot.ISBN); err != nil {
			return translate(err)
		}
	}
	return translate(tx.Commit())
}

func (s *Store) GetTop3(ctx context.Context, userID string) ([]user.Top3Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, book_isbn
		FROM user_top3
		WHERE user_id = $1
		ORDER BY position
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []user.Top3Slot
	for rows.Next() {
		var (
			slot user.Top3Slot
			isbn sql.NullString
		)
		if err := rows.Scan(&slot.Position, &isbn); err != nil {
			return nil, err
		}
		if isbn.Valid {
			slot.ISBN = isbn.String
		}
		result = append(result, slot)
	}
	return result, rows.Err()
}

// --- EventStore -------------------------------------------------------------

func (s *Store) CreateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, date, time, category, location, lat, lng, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
	`, ev.ID, ev.Title, ev.Date, ev.Time, ev.Category, ev.Location, ev.Lat, ev.Lng, ev.CreatedByID, ev.CreatedAt)
	if err != nil {
		return event.Event{}, translate(err)
	}
	return ev, nil
}

const eventColumns = `id, title, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), category, location, lat, lng, created_by, created_at`

func (s *Store) GetEvent(ctx context.Context, id string) (event.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
	`, id)
	return scanEvent(row)
}

func (s *Store) ListEvents(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY date, time
	`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE id = $1
	`, id)
	if err != nil {
		return translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) AddAttendee(ctx context.Context, eventID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_attendees (user_id, event_id)
		VALUES ($1, $2)
	`, userID, eventID)
	return translate(err)
}

func (s *Store) RemoveAttendee(ctx context.Context, eventID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM event_attendees WHERE user_id = $1 AND event_id = $2
	`, userID, eventID)
	if err != nil {
		return translate(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListAttendees(ctx context.Context, eventID string) ([]user.User, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.password, u.is_active, u.avatar_url, u.current_reading_isbn, u.about_text, u.favorite_genres, u.created_at, u.updated_at
		FROM event_attendees ea
		JOIN users u ON u.id = ea.user_id
		WHERE ea.event_id = $1
		ORDER BY u.created_at
	`, eventID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) ListEventsForUser(ctx context.Context, userID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, to_char(e.date, 'YYYY-MM-DD'), to_char(e.time, 'HH24:MI'), e.category, e.location, e.lat, e.lng, e.created_by, e.created_at
		FROM event_attendees ea
		JOIN events e ON e.id = ea.event_id
		WHERE ea.user_id = $1
		ORDER BY e.date, e.time
	`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func scanEvent(row rowScanner) (event.Event, error) {
	var (
		ev        event.Event
		lat, lng  sql.NullFloat64
		createdBy sql.NullString
	)
	if err := row.Scan(&ev.ID, &ev.Title, &ev.Date, &ev.Time, &ev.Category, &ev.Location, &lat, &lng, &createdBy, &ev.CreatedAt); err != nil {
		return event.Event{}, translate(err)
	}
	if lat.Valid {
		v := lat.Float64
		ev.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		ev.Lng = &v
	}
	if createdBy.Valid {
		ev.CreatedByID = createdBy.String
	}
	return ev, nil
}

func collectEvents(rows *sql.Rows) ([]event.Event, error) {
	var result []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
