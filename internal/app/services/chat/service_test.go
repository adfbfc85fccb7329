package chat

import (
	"context"
	"testing"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	"github.com/bookcircle/bookcircle/internal/app/storage/memory"
	"github.com/bookcircle/bookcircle/pkg/testutil"
)

func seed(t *testing.T) (*Service, *memory.Store, *testutil.FakeChatProvider, user.User) {
	t.Helper()
	store := memory.New()
	provider := testutil.NewFakeChatProvider()
	u, err := store.CreateUser(context.Background(), user.User{Username: "ana", Email: "ana@example.com", AvatarURL: "http://img/ana", IsActive: true})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return New(store, store, provider, nil), store, provider, u
}

func TestStreamTokenUpsertsIdentity(t *testing.T) {
	svc, _, provider, u := seed(t)

	token, err := svc.StreamToken(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("stream token: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a token")
	}
	if got := provider.Users[u.ID]; got.Name != "ana" || got.Image != "http://img/ana" {
		t.Fatalf("identity not upserted: %+v", got)
	}
}

func TestCreateOrJoinChannelByISBNIsIdempotent(t *testing.T) {
	svc, store, provider, u := seed(t)
	ctx := context.Background()

	cb := ChannelBook{ISBN: "978-0-30-747472-8", Title: "Cien años de soledad", Thumbnail: "http://img/cien"}
	info, err := svc.CreateOrJoinChannelByISBN(ctx, u.ID, cb)
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if info.ID != "book-isbn-9780307474728" {
		t.Fatalf("channel id should derive from the normalized isbn, got %q", info.ID)
	}

	other, err := store.CreateUser(ctx, user.User{Username: "luis", Email: "luis@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("seed second user: %v", err)
	}
	again, err := svc.CreateOrJoinChannelByISBN(ctx, other.ID, cb)
	if err != nil {
		t.Fatalf("second create must not error: %v", err)
	}
	if again.ID != info.ID {
		t.Fatalf("same isbn must land in the same channel")
	}
	if again.MemberCount != 2 {
		t.Fatalf("existing channel should gain the new member, got %d", again.MemberCount)
	}
	if again.CreatedByID != u.ID {
		t.Fatalf("creator should be the first user")
	}
	_ = provider
}

func TestCreateOrJoinChannelByTitleUsesSlug(t *testing.T) {
	svc, _, _, u := seed(t)

	info, err := svc.CreateOrJoinChannelByTitle(context.Background(), u.ID, "Cien Años de Soledad")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if info.ID != "book-cien-anos-de-soledad" {
		t.Fatalf("expected accent-folded slug id, got %q", info.ID)
	}
}

func TestPublicChannelsListsBookChannels(t *testing.T) {
	svc, _, _, u := seed(t)
	ctx := context.Background()

	if _, err := svc.CreateOrJoinChannelByISBN(ctx, u.ID, ChannelBook{ISBN: "9780307474728", Title: "Cien años de soledad"}); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := svc.CreateOrJoinChannelByTitle(ctx, u.ID, "Rayuela"); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	channels, err := svc.PublicChannels(ctx)
	if err != nil {
		t.Fatalf("public channels: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected both book channels, got %+v", channels)
	}
}

func TestMembersByISBN(t *testing.T) {
	svc, _, _, u := seed(t)
	ctx := context.Background()

	if _, err := svc.CreateOrJoinChannelByISBN(ctx, u.ID, ChannelBook{ISBN: "9780307474728", Title: "Cien años de soledad"}); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	members, err := svc.MembersByISBN(ctx, "978-0-30-747472-8")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != u.ID {
		t.Fatalf("unexpected members: %+v", members)
	}
	if members[0].Name != "ana" {
		t.Fatalf("member name should come from the upserted identity")
	}
}

func TestSyncChannelAvatars(t *testing.T) {
	svc, store, provider, u := seed(t)
	ctx := context.Background()

	// Channel created without a thumbnail; the book record has one.
	if _, err := store.UpsertBook(ctx, book.Book{ISBN: "9780307474728", Title: "Cien años de soledad", Thumbnail: "http://img/cien"}); err != nil {
		t.Fatalf("upsert book: %v", err)
	}
	if _, err := svc.CreateOrJoinChannelByISBN(ctx, u.ID, ChannelBook{ISBN: "9780307474728", Title: "Cien años de soledad"}); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	// A channel for an unknown book is skipped.
	if _, err := svc.CreateOrJoinChannelByISBN(ctx, u.ID, ChannelBook{ISBN: "9999999999999", Title: "Desconocido"}); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	updated, err := svc.SyncChannelAvatars(ctx)
	if err != nil {
		t.Fatalf("sync avatars: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected one channel updated, got %d", updated)
	}
	if provider.Channels["book-isbn-9780307474728"].Data.Image != "http://img/cien" {
		t.Fatalf("channel image not backfilled")
	}
}
