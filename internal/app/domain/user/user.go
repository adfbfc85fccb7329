// Package user defines the user account record and its serialized form.
package user

import (
	"encoding/json"
	"time"
)

// User is a registered account. Password holds the versioned hash and is
// never serialized.
type User struct {
	ID                 string
	Username           string
	Email              string
	Password           string
	IsActive           bool
	AvatarURL          string
	CurrentReadingISBN string // empty when no book is in progress
	AboutText          string
	FavoriteGenres     []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Top3Slot is one of a user's three favorite-book positions. ISBN is empty
// when the slot is unset.
type Top3Slot struct {
	Position int    `json:"position"`
	ISBN     string `json:"isbn,omitempty"`
}

// Public is the wire representation of a user. The password hash is omitted
// by construction rather than by tag.
type Public struct {
	ID                 string   `json:"id"`
	Username           string   `json:"username"`
	Email              string   `json:"email"`
	IsActive           bool     `json:"is_active"`
	AvatarURL          string   `json:"avatar_url,omitempty"`
	CurrentReadingISBN *string  `json:"current_reading_isbn"`
	AboutText          string   `json:"about_text,omitempty"`
	FavoriteGenres     []string `json:"favorite_genres"`
}

// Serialize converts a User into its public wire form.
func (u User) Serialize() Public {
	var current *string
	if u.CurrentReadingISBN != "" {
		isbn := u.CurrentReadingISBN
		current = &isbn
	}
	genres := u.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}
	return Public{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		IsActive:           u.IsActive,
		AvatarURL:          u.AvatarURL,
		CurrentReadingISBN: current,
		AboutText:          u.AboutText,
		FavoriteGenres:     genres,
	}
}

// EncodeGenres serializes a genre list for storage.
func EncodeGenres(genres []string) string {
	if len(genres) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(genres)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// DecodeGenres parses a stored genre list. Missing or invalid values decode
// to an empty list.
func DecodeGenres(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var genres []string
	if err := json.Unmarshal([]byte(raw), &genres); err != nil || genres == nil {
		return []string{}
	}
	return genres
}
