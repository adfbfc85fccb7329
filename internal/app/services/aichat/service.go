// Package aichat drives the streaming book-recommendation assistant.
package aichat

import (
	"context"

	"github.com/bookcircle/bookcircle/internal/adapters/aichat"
	"github.com/bookcircle/bookcircle/internal/adapters/googlebooks"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

const systemPrompt = "Eres un asistente experto en literatura. Recomiendas libros, " +
	"respondes preguntas sobre autores y obras, y ayudas al usuario a encontrar su " +
	"próxima lectura. Responde siempre en español, de forma breve y amable."

// Streamer is the slice of the completion adapter this service needs.
type Streamer interface {
	Stream(ctx context.Context, messages []aichat.Message) (<-chan aichat.Event, error)
}

// Surprises hands out random catalog volumes.
type Surprises interface {
	RandomBook(ctx context.Context) (googlebooks.Volume, error)
}

// Service answers assistant conversations.
type Service struct {
	streamer  Streamer
	surprises Surprises
	log       *logger.Logger
}

// New constructs an aichat service.
func New(streamer Streamer, surprises Surprises, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("aichat")
	}
	return &Service{streamer: streamer, surprises: surprises, log: log}
}

// historyLimit bounds how much prior conversation is replayed upstream.
const historyLimit = 10

// Chat streams a reply to the user's message given prior conversation turns.
// The returned channel always ends with a terminal Done or Err event.
func (s *Service) Chat(ctx context.Context, history []aichat.Message, message string) (<-chan aichat.Event, error) {
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	messages := make([]aichat.Message, 0, len(history)+2)
	messages = append(messages, aichat.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, aichat.Message{Role: "user", Content: message})

	return s.streamer.Stream(ctx, messages)
}

// RandomBook returns a surprise recommendation from the catalog.
func (s *Service) RandomBook(ctx context.Context) (googlebooks.Volume, error) {
	return s.surprises.RandomBook(ctx)
}
