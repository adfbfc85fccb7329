// Package app wires stores, adapters, and services into one application.
package app

import (
	aichatsvc "github.com/bookcircle/bookcircle/internal/app/services/aichat"
	bookssvc "github.com/bookcircle/bookcircle/internal/app/services/books"
	chatsvc "github.com/bookcircle/bookcircle/internal/app/services/chat"
	eventssvc "github.com/bookcircle/bookcircle/internal/app/services/events"
	librarysvc "github.com/bookcircle/bookcircle/internal/app/services/library"
	userssvc "github.com/bookcircle/bookcircle/internal/app/services/users"
	"github.com/bookcircle/bookcircle/internal/app/storage"
	"github.com/bookcircle/bookcircle/internal/app/storage/memory"
	"github.com/bookcircle/bookcircle/internal/auth"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users   storage.UserStore
	Books   storage.BookStore
	Library storage.LibraryStore
	Top3    storage.Top3Store
	Events  storage.EventStore
}

// Adapters holds the outbound provider clients.
type Adapters struct {
	Catalog   bookssvc.Catalog
	Surprises aichatsvc.Surprises
	Chat      chatsvc.Provider
	Streamer  aichatsvc.Streamer
}

// Application ties domain services together.
type Application struct {
	log *logger.Logger

	Users   *userssvc.Service
	Library *librarysvc.Service
	Events  *eventssvc.Service
	Books   *bookssvc.Service
	Chat    *chatsvc.Service
	AI      *aichatsvc.Service
}

// New builds a fully initialised application with the provided stores and
// adapters.
func New(stores Stores, adapters Adapters, tokens *auth.TokenManager, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Books == nil {
		stores.Books = mem
	}
	if stores.Library == nil {
		stores.Library = mem
	}
	if stores.Top3 == nil {
		stores.Top3 = mem
	}
	if stores.Events == nil {
		stores.Events = mem
	}

	usersService := userssvc.New(stores.Users, stores.Books, stores.Library, stores.Top3, tokens, log)
	libraryService := librarysvc.New(stores.Users, stores.Books, stores.Library, log)
	eventsService := eventssvc.New(stores.Users, stores.Events, log)
	booksService := bookssvc.New(adapters.Catalog, log)
	chatService := chatsvc.New(stores.Users, stores.Books, adapters.Chat, log)
	aiService := aichatsvc.New(adapters.Streamer, adapters.Surprises, log)

	if adapters.Chat != nil {
		usersService.AttachChatTokens(adapters.Chat)
	}

	return &Application{
		log:     log,
		Users:   usersService,
		Library: libraryService,
		Events:  eventsService,
		Books:   booksService,
		Chat:    chatService,
		AI:      aiService,
	}, nil
}
