package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/bookcircle/bookcircle/internal/app/domain/event"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/httputil"
	"github.com/bookcircle/bookcircle/internal/middleware"
)

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

type createEventRequest struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Category string `json:"category"`
	Location string `json:"location"`
	Lat      any    `json:"lat"`
	Lng      any    `json:"lng"`
}

// coordinate coerces a JSON lat/lng value to a float. Coordinates arrive as
// numbers, numeric strings, or garbage; anything unusable becomes null
// instead of failing the whole request.
func coordinate(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return &f
		}
	}
	return nil
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Title == "" || req.Date == "" || req.Time == "" || req.Category == "" || req.Location == "" {
		httputil.BadRequest(w, "Missing fields")
		return
	}

	ev, err := h.events.Create(r.Context(), event.Event{
		Title:       req.Title,
		Date:        req.Date,
		Time:        req.Time,
		Category:    req.Category,
		Location:    req.Location,
		Lat:         coordinate(req.Lat),
		Lng:         coordinate(req.Lng),
		CreatedByID: middleware.GetUserID(r.Context()),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ev)
}

func (h *Handler) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"msg": "Event deleted"})
}

type eventSignupRequest struct {
	UserID string `json:"user_id"`
}

// signupUserID resolves the attendee: explicit user_id in the body wins,
// otherwise the bearer-token identity is used.
func signupUserID(r *http.Request) string {
	var req eventSignupRequest
	if err := httputil.ReadJSON(r, &req); err == nil && req.UserID != "" {
		return req.UserID
	}
	return middleware.GetUserID(r.Context())
}

func (h *Handler) handleEventSignup(w http.ResponseWriter, r *http.Request) {
	userID := signupUserID(r)
	if userID == "" {
		httputil.BadRequest(w, "Missing user_id")
		return
	}
	if err := h.events.Signup(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"msg": "User signed up to event"})
}

func (h *Handler) handleEventUnsignup(w http.ResponseWriter, r *http.Request) {
	userID := signupUserID(r)
	if userID == "" {
		httputil.BadRequest(w, "Missing user_id")
		return
	}
	if err := h.events.Unsignup(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"msg": "User unsigned from event"})
}

func (h *Handler) handleEventAttendees(w http.ResponseWriter, r *http.Request) {
	attendees, err := h.events.Attendees(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]user.Public, 0, len(attendees))
	for _, u := range attendees {
		out = append(out, u.Serialize())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.EventsForUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}
