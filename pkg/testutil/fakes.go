// Package testutil provides in-memory fakes for the external adapters.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/bookcircle/bookcircle/internal/adapters/aichat"
	"github.com/bookcircle/bookcircle/internal/adapters/googlebooks"
	"github.com/bookcircle/bookcircle/internal/adapters/streamchat"
)

// FakeChatProvider records chat-provider calls in memory.
type FakeChatProvider struct {
	mu       sync.Mutex
	Users    map[string]streamchat.User
	Channels map[string]*FakeChannel
	Err      error // returned by every call when set
	TokenErr error // returned by UserToken when set
}

// FakeChannel is the provider-side state of one channel.
type FakeChannel struct {
	Data        streamchat.ChannelData
	CreatedByID string
	Members     []string
}

// NewFakeChatProvider creates an empty fake provider.
func NewFakeChatProvider() *FakeChatProvider {
	return &FakeChatProvider{
		Users:    make(map[string]streamchat.User),
		Channels: make(map[string]*FakeChannel),
	}
}

func (f *FakeChatProvider) UserToken(userID string) (string, error) {
	if f.TokenErr != nil {
		return "", f.TokenErr
	}
	if f.Err != nil {
		return "", f.Err
	}
	return "stream-token-" + userID, nil
}

func (f *FakeChatProvider) UpsertUser(_ context.Context, u streamchat.User) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[u.ID] = u
	return nil
}

func (f *FakeChatProvider) CreateOrGetChannel(_ context.Context, channelID, userID string, data streamchat.ChannelData) (streamchat.ChannelInfo, error) {
	if f.Err != nil {
		return streamchat.ChannelInfo{}, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.Channels[channelID]
	if !ok {
		ch = &FakeChannel{Data: data, CreatedByID: userID}
		f.Channels[channelID] = ch
	}
	ch.addMember(userID)
	return f.info(channelID, ch), nil
}

func (f *FakeChatProvider) AddMember(_ context.Context, channelID, userID string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.Channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s does not exist: %w", channelID, streamchat.ErrUpstream)
	}
	ch.addMember(userID)
	return nil
}

func (f *FakeChatProvider) QueryChannelsByPrefix(_ context.Context, prefix string) ([]streamchat.ChannelInfo, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []streamchat.ChannelInfo
	for id, ch := range f.Channels {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			result = append(result, f.info(id, ch))
		}
	}
	return result, nil
}

func (f *FakeChatProvider) ChannelMembers(_ context.Context, channelID string) ([]streamchat.Member, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.Channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %s does not exist: %w", channelID, streamchat.ErrUpstream)
	}
	result := make([]streamchat.Member, 0, len(ch.Members))
	for _, userID := range ch.Members {
		member := streamchat.Member{UserID: userID}
		if u, found := f.Users[userID]; found {
			member.Name = u.Name
			member.Image = u.Image
		}
		result = append(result, member)
	}
	return result, nil
}

func (f *FakeChatProvider) UpdateChannelImage(_ context.Context, channelID, image string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, ok := f.Channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s does not exist: %w", channelID, streamchat.ErrUpstream)
	}
	ch.Data.Image = image
	return nil
}

func (f *FakeChatProvider) info(id string, ch *FakeChannel) streamchat.ChannelInfo {
	return streamchat.ChannelInfo{
		ID:          id,
		Name:        ch.Data.Name,
		BookTitle:   ch.Data.BookTitle,
		Image:       ch.Data.Image,
		CreatedByID: ch.CreatedByID,
		MemberCount: len(ch.Members),
	}
}

func (ch *FakeChannel) addMember(userID string) {
	for _, id := range ch.Members {
		if id == userID {
			return
		}
	}
	ch.Members = append(ch.Members, userID)
}

// FakeCatalog serves canned catalog volumes.
type FakeCatalog struct {
	Volumes []googlebooks.Volume
	ByISBN  map[string]googlebooks.Volume
	Random  googlebooks.Volume
	Err     error
}

func (f *FakeCatalog) Search(_ context.Context, _ string) ([]googlebooks.Volume, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Volumes, nil
}

func (f *FakeCatalog) LookupISBN(_ context.Context, isbn string) (googlebooks.Volume, error) {
	if f.Err != nil {
		return googlebooks.Volume{}, f.Err
	}
	return f.ByISBN[isbn], nil
}

func (f *FakeCatalog) RandomBook(_ context.Context) (googlebooks.Volume, error) {
	if f.Err != nil {
		return googlebooks.Volume{}, f.Err
	}
	return f.Random, nil
}

// FakeStreamer replays a scripted completion stream.
type FakeStreamer struct {
	Fragments []string
	Terminal  aichat.Event // zero value defaults to Done
	SetupErr  error
	LastInput []aichat.Message
}

func (f *FakeStreamer) Stream(ctx context.Context, messages []aichat.Message) (<-chan aichat.Event, error) {
	if f.SetupErr != nil {
		return nil, f.SetupErr
	}
	f.LastInput = messages

	events := make(chan aichat.Event)
	go func() {
		defer close(events)
		for _, fragment := range f.Fragments {
			select {
			case events <- aichat.Event{Content: fragment}:
			case <-ctx.Done():
				return
			}
		}
		terminal := f.Terminal
		if !terminal.Done && terminal.Err == nil {
			terminal = aichat.Event{Done: true}
		}
		select {
		case events <- terminal:
		case <-ctx.Done():
		}
	}()
	return events, nil
}
