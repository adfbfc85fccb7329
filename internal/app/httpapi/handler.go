// Package httpapi exposes the application services over HTTP.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookcircle/bookcircle/internal/adapters/aichat"
	"github.com/bookcircle/bookcircle/internal/adapters/googlebooks"
	"github.com/bookcircle/bookcircle/internal/adapters/streamchat"
	aichatsvc "github.com/bookcircle/bookcircle/internal/app/services/aichat"
	bookssvc "github.com/bookcircle/bookcircle/internal/app/services/books"
	chatsvc "github.com/bookcircle/bookcircle/internal/app/services/chat"
	eventssvc "github.com/bookcircle/bookcircle/internal/app/services/events"
	librarysvc "github.com/bookcircle/bookcircle/internal/app/services/library"
	userssvc "github.com/bookcircle/bookcircle/internal/app/services/users"
	"github.com/bookcircle/bookcircle/internal/app/storage"
	"github.com/bookcircle/bookcircle/internal/auth"
	"github.com/bookcircle/bookcircle/internal/httputil"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// Handler dispatches API routes to the application services.
type Handler struct {
	users   *userssvc.Service
	library *librarysvc.Service
	events  *eventssvc.Service
	books   *bookssvc.Service
	chat    *chatsvc.Service
	ai      *aichatsvc.Service
	log     *logger.Logger
}

// New creates the HTTP handler over the given services.
func New(users *userssvc.Service, library *librarysvc.Service, events *eventssvc.Service, books *bookssvc.Service, chat *chatsvc.Service, ai *aichatsvc.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		users:   users,
		library: library,
		events:  events,
		books:   books,
		chat:    chat,
		ai:      ai,
		log:     log,
	}
}

// Register mounts all API routes on the router. Routes requiring an
// authenticated identity go on the protected subrouter.
func (h *Handler) Register(r *mux.Router, authMW mux.MiddlewareFunc) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/signup", h.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.handleRefresh).Methods(http.MethodPost)

	api.HandleFunc("/books/search", h.handleBookSearch).Methods(http.MethodGet)
	api.HandleFunc("/books/by-isbn", h.handleBookByISBN).Methods(http.MethodGet)

	api.HandleFunc("/events", h.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events", h.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}/users", h.handleEventAttendees).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(authMW)

	protected.HandleFunc("/me", h.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/users", h.handleListUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", h.handleGetUser).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", h.handleUpdateUser).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id}", h.handleDeleteUser).Methods(http.MethodDelete)
	protected.HandleFunc("/users/{id}/profile", h.handleGetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}/profile", h.handleUpdateProfile).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id}/current-reading", h.handleGetCurrentReading).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}/current-reading", h.handleSetCurrentReading).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id}/current-reading", h.handleClearCurrentReading).Methods(http.MethodDelete)
	protected.HandleFunc("/users/{id}/reading-history", h.handleReadingHistory).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}/top3", h.handleGetTop3).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}/top3", h.handleSetTop3).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id}/events", h.handleUserEvents).Methods(http.MethodGet)

	protected.HandleFunc("/events/{id}", h.handleDeleteEvent).Methods(http.MethodDelete)
	protected.HandleFunc("/events/{id}/signup", h.handleEventSignup).Methods(http.MethodPost)
	protected.HandleFunc("/events/{id}/signup", h.handleEventUnsignup).Methods(http.MethodDelete)

	protected.HandleFunc("/library/{user_id}/books", h.handleListLibrary).Methods(http.MethodGet)
	protected.HandleFunc("/library/{user_id}/books", h.handleAddLibraryBook).Methods(http.MethodPost)
	protected.HandleFunc("/library/{user_id}/books/{isbn}", h.handleRemoveLibraryBook).Methods(http.MethodDelete)

	protected.HandleFunc("/stream-token", h.handleStreamToken).Methods(http.MethodGet)
	protected.HandleFunc("/chat/create-channel", h.handleCreateChannel).Methods(http.MethodPost)
	protected.HandleFunc("/chat/join-channel/{id}", h.handleJoinChannel).Methods(http.MethodPost)
	protected.HandleFunc("/chat/public-channels", h.handlePublicChannels).Methods(http.MethodGet)
	protected.HandleFunc("/chat/create-or-join-channel", h.handleCreateOrJoinChannel).Methods(http.MethodPost)
	protected.HandleFunc("/chat/create-or-join-channel-by-isbn", h.handleCreateOrJoinChannelByISBN).Methods(http.MethodPost)
	protected.HandleFunc("/chat/channel-members-by-isbn", h.handleChannelMembersByISBN).Methods(http.MethodGet)
	protected.HandleFunc("/chat/sync-my-avatar", h.handleSyncMyAvatar).Methods(http.MethodPost)
	protected.HandleFunc("/chat/sync-channel-avatars", h.handleSyncChannelAvatars).Methods(http.MethodGet)

	protected.HandleFunc("/ai-chat", h.handleAIChat).Methods(http.MethodPost)
	protected.HandleFunc("/ai-chat/random-book", h.handleRandomBook).Methods(http.MethodGet)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// respondError translates domain and adapter failures into HTTP statuses.
// Internal faults get a safe generic message; the cause goes to the log.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, userssvc.ErrInvalidCredentials):
		httputil.Unauthorized(w, "Invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		httputil.Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, userssvc.ErrInvalidTop3),
		errors.Is(err, userssvc.ErrInvalidBook),
		errors.Is(err, librarysvc.ErrInvalidBook),
		errors.Is(err, chatsvc.ErrInvalidISBN),
		errors.Is(err, eventssvc.ErrInvalidDateTime):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, storage.ErrConflict):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, googlebooks.ErrRateLimited),
		errors.Is(err, streamchat.ErrRateLimited),
		errors.Is(err, aichat.ErrRateLimited):
		httputil.WriteError(w, http.StatusTooManyRequests, "upstream rate limit exceeded, try again later")
	case errors.Is(err, googlebooks.ErrUpstream),
		errors.Is(err, streamchat.ErrUpstream),
		errors.Is(err, aichat.ErrUpstream):
		httputil.WriteError(w, http.StatusBadGateway, "upstream provider unavailable")
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("Unhandled request error")
		httputil.InternalError(w, "")
	}
}
