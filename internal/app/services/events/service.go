// Package events manages events and attendance.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookcircle/bookcircle/internal/app/domain/event"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/app/storage"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// ErrInvalidDateTime rejects a create request whose date or time does not
// parse. Bad coordinates never trigger it; they are dropped instead.
var ErrInvalidDateTime = errors.New("invalid date/time format")

// Service manages events.
type Service struct {
	users  storage.UserStore
	events storage.EventStore
	log    *logger.Logger
}

// New constructs an events service.
func New(users storage.UserStore, events storage.EventStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Service{users: users, events: events, log: log}
}

// Create validates and stores a new event.
func (s *Service) Create(ctx context.Context, ev event.Event) (event.Event, error) {
	if ev.Title == "" || ev.Date == "" || ev.Time == "" || ev.Category == "" || ev.Location == "" {
		return event.Event{}, fmt.Errorf("title, date, time, category and location are required")
	}

	date, err := event.ParseDate(ev.Date)
	if err != nil {
		return event.Event{}, ErrInvalidDateTime
	}
	timeOfDay, err := event.ParseTime(ev.Time)
	if err != nil {
		return event.Event{}, ErrInvalidDateTime
	}
	ev.Date = date
	ev.Time = timeOfDay

	created, err := s.events.CreateEvent(ctx, ev)
	if err != nil {
		return event.Event{}, err
	}
	s.log.Infof("event %s created", created.ID)
	return created, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (event.Event, error) {
	return s.events.GetEvent(ctx, id)
}

// List returns all events ordered by date then time.
func (s *Service) List(ctx context.Context) ([]event.Event, error) {
	result, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []event.Event{}
	}
	return result, nil
}

// Delete removes an event and its attendance rows.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.log.Infof("event %s deleted", id)
	return nil
}

// Signup registers a user for an event. A second signup is a conflict.
func (s *Service) Signup(ctx context.Context, eventID, userID string) error {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return err
	}
	return s.events.AddAttendee(ctx, eventID, userID)
}

// Unsignup removes a user from an event. Not being signed up is a conflict,
// not a no-op.
func (s *Service) Unsignup(ctx context.Context, eventID, userID string) error {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return err
	}
	if err := s.events.RemoveAttendee(ctx, eventID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("user not signed up to this event: %w", storage.ErrConflict)
		}
		return err
	}
	return nil
}

// Attendees lists the users signed up for an event.
func (s *Service) Attendees(ctx context.Context, eventID string) ([]user.User, error) {
	attendees, err := s.events.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if attendees == nil {
		attendees = []user.User{}
	}
	return attendees, nil
}

// EventsForUser lists the events a user is signed up for.
func (s *Service) EventsForUser(ctx context.Context, userID string) ([]event.Event, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	result, err := s.events.ListEventsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []event.Event{}
	}
	return result, nil
}
