// Package event defines meetup events and their fixed date/time formats.
package event

import (
	"fmt"
	"time"
)

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

// Event is a scheduled meetup. Date and Time are stored in the fixed wire
// formats above. Lat/Lng are nil when no usable coordinates were supplied.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	CreatedByID string    `json:"created_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ParseDate validates a wire date and returns its canonical form.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.Format(DateFormat), nil
}

// ParseTime validates a wire time and returns its canonical form.
func ParseTime(s string) (string, error) {
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return "", fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Format(TimeFormat), nil
}
