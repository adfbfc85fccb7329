// Package book defines the book reference data shared across users.
package book

import (
	"strings"
	"unicode"
)

// Book is immutable reference data keyed by normalized ISBN. It is created
// lazily the first time any user references the ISBN.
type Book struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// NormalizeISBN strips hyphens and spaces and upper-cases an ISBN so
// equivalent representations resolve to the same record. It is idempotent.
func NormalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range isbn {
		if r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ISBNChannelPrefix starts every ISBN-keyed discussion channel id.
const ISBNChannelPrefix = "book-isbn-"

// ChannelIDByISBN derives the discussion channel identity for a book by its
// ISBN. ISBN identity is authoritative: titles are not unique.
func ChannelIDByISBN(isbn string) string {
	normalized := NormalizeISBN(isbn)
	if normalized == "" {
		return ""
	}
	return ISBNChannelPrefix + normalized
}

// ChannelIDByTitle derives the legacy title-based channel identity.
func ChannelIDByTitle(title string) string {
	slug := Slug(title)
	if slug == "" {
		return ""
	}
	return "book-" + slug
}

// Slug lowercases the title, folds accented letters to their base form,
// drops other punctuation and joins words with single hyphens.
func Slug(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(title) {
		r = foldAccent(r)
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case unicode.IsSpace(r) || r == '-':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func foldAccent(r rune) rune {
	switch r {
	case 'á', 'à', 'ä', 'â', 'ã':
		return 'a'
	case 'é', 'è', 'ë', 'ê':
		return 'e'
	case 'í', 'ì', 'ï', 'î':
		return 'i'
	case 'ó', 'ò', 'ö', 'ô', 'õ':
		return 'o'
	case 'ú', 'ù', 'ü', 'û':
		return 'u'
	case 'ñ':
		return 'n'
	case 'ç':
		return 'c'
	}
	return r
}
