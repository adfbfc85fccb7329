// Package chat bridges accounts and book channels to the chat provider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bookcircle/bookcircle/internal/adapters/streamchat"
	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/app/storage"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// ErrInvalidISBN rejects an isbn with no digits left after normalization.
var ErrInvalidISBN = errors.New("a valid isbn is required")

// Provider is the slice of the chat adapter this service needs.
type Provider interface {
	UserToken(userID string) (string, error)
	UpsertUser(ctx context.Context, u streamchat.User) error
	CreateOrGetChannel(ctx context.Context, channelID, userID string, data streamchat.ChannelData) (streamchat.ChannelInfo, error)
	AddMember(ctx context.Context, channelID, userID string) error
	QueryChannelsByPrefix(ctx context.Context, prefix string) ([]streamchat.ChannelInfo, error)
	ChannelMembers(ctx context.Context, channelID string) ([]streamchat.Member, error)
	UpdateChannelImage(ctx context.Context, channelID, image string) error
}

// Service manages chat identities and book discussion channels.
type Service struct {
	users    storage.UserStore
	books    storage.BookStore
	provider Provider
	log      *logger.Logger
}

// New constructs a chat service.
func New(users storage.UserStore, books storage.BookStore, provider Provider, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("chat")
	}
	return &Service{users: users, books: books, provider: provider, log: log}
}

// ready reports whether a chat provider is configured. The provider is
// optional at startup; without it every chat operation fails as upstream
// unavailable instead of panicking.
func (s *Service) ready() error {
	if s.provider == nil {
		return fmt.Errorf("chat provider not configured: %w", streamchat.ErrUpstream)
	}
	return nil
}

// StreamToken upserts the user's chat identity and mints a connection token.
func (s *Service) StreamToken(ctx context.Context, userID string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.provider.UpsertUser(ctx, chatUser(u)); err != nil {
		return "", err
	}
	return s.provider.UserToken(userID)
}

// ChannelBook describes the book behind a discussion channel.
type ChannelBook struct {
	ISBN      string
	Title     string
	Thumbnail string
	Authors   []string
}

// CreateOrJoinChannelByISBN opens the authoritative channel for a book and
// ensures the user is a member. Everyone discussing the same isbn lands in
// the same channel.
func (s *Service) CreateOrJoinChannelByISBN(ctx context.Context, userID string, cb ChannelBook) (streamchat.ChannelInfo, error) {
	if err := s.ready(); err != nil {
		return streamchat.ChannelInfo{}, err
	}
	channelID := book.ChannelIDByISBN(cb.ISBN)
	if channelID == "" {
		return streamchat.ChannelInfo{}, ErrInvalidISBN
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return streamchat.ChannelInfo{}, err
	}
	if err := s.provider.UpsertUser(ctx, chatUser(u)); err != nil {
		return streamchat.ChannelInfo{}, err
	}

	title := cb.Title
	if title == "" {
		title = "Libro sin título"
	}
	data := streamchat.ChannelData{
		Name:      title,
		BookTitle: title,
		BookISBN:  book.NormalizeISBN(cb.ISBN),
		Image:     cb.Thumbnail,
	}
	return s.provider.CreateOrGetChannel(ctx, channelID, userID, data)
}

// CreateOrJoinChannelByTitle opens the legacy slug-keyed channel for a book
// title. Kept for clients that know no isbn.
func (s *Service) CreateOrJoinChannelByTitle(ctx context.Context, userID, title string) (streamchat.ChannelInfo, error) {
	if err := s.ready(); err != nil {
		return streamchat.ChannelInfo{}, err
	}
	if strings.TrimSpace(title) == "" {
		return streamchat.ChannelInfo{}, fmt.Errorf("book_title is required")
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return streamchat.ChannelInfo{}, err
	}
	if err := s.provider.UpsertUser(ctx, chatUser(u)); err != nil {
		return streamchat.ChannelInfo{}, err
	}

	channelID := book.ChannelIDByTitle(title)
	data := streamchat.ChannelData{Name: title, BookTitle: title}
	return s.provider.CreateOrGetChannel(ctx, channelID, userID, data)
}

// CreateChannel opens a channel with an explicit id, with the user as
// creator and first member.
func (s *Service) CreateChannel(ctx context.Context, userID, channelID, name string) (streamchat.ChannelInfo, error) {
	if err := s.ready(); err != nil {
		return streamchat.ChannelInfo{}, err
	}
	if strings.TrimSpace(channelID) == "" {
		return streamchat.ChannelInfo{}, fmt.Errorf("channel_id is required")
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return streamchat.ChannelInfo{}, err
	}
	if err := s.provider.UpsertUser(ctx, chatUser(u)); err != nil {
		return streamchat.ChannelInfo{}, err
	}
	return s.provider.CreateOrGetChannel(ctx, channelID, userID, streamchat.ChannelData{Name: name})
}

// JoinChannel adds the user to an existing channel by id.
func (s *Service) JoinChannel(ctx context.Context, userID, channelID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.provider.UpsertUser(ctx, chatUser(u)); err != nil {
		return err
	}
	return s.provider.AddMember(ctx, channelID, userID)
}

// PublicChannels lists every book discussion channel.
func (s *Service) PublicChannels(ctx context.Context) ([]streamchat.ChannelInfo, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	channels, err := s.provider.QueryChannelsByPrefix(ctx, "book-")
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []streamchat.ChannelInfo{}
	}
	return channels, nil
}

// MembersByISBN lists the members of a book's authoritative channel.
func (s *Service) MembersByISBN(ctx context.Context, isbn string) ([]streamchat.Member, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	channelID := book.ChannelIDByISBN(isbn)
	if channelID == "" {
		return nil, ErrInvalidISBN
	}
	members, err := s.provider.ChannelMembers(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []streamchat.Member{}
	}
	return members, nil
}

// SyncMyAvatar pushes the user's stored avatar to the chat provider.
func (s *Service) SyncMyAvatar(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.provider.UpsertUser(ctx, chatUser(u))
}

// SyncChannelAvatars backfills channel images from stored book thumbnails.
// Channels whose book is unknown or has no thumbnail are skipped. Returns the
// number of channels updated.
func (s *Service) SyncChannelAvatars(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	channels, err := s.provider.QueryChannelsByPrefix(ctx, book.ISBNChannelPrefix)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, ch := range channels {
		if ch.Image != "" {
			continue
		}
		isbn := strings.TrimPrefix(ch.ID, book.ISBNChannelPrefix)
		b, err := s.books.GetBook(ctx, isbn)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return updated, err
		}
		if b.Thumbnail == "" {
			continue
		}
		if err := s.provider.UpdateChannelImage(ctx, ch.ID, b.Thumbnail); err != nil {
			s.log.WithError(err).WithField("channel_id", ch.ID).Warn("channel avatar update failed")
			continue
		}
		updated++
	}
	return updated, nil
}

func chatUser(u user.User) streamchat.User {
	return streamchat.User{
		ID:    u.ID,
		Name:  u.Username,
		Image: u.AvatarURL,
	}
}
