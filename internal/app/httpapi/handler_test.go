package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/bookcircle/bookcircle/internal/adapters/aichat"
	"github.com/bookcircle/bookcircle/internal/adapters/googlebooks"
	aichatsvc "github.com/bookcircle/bookcircle/internal/app/services/aichat"
	bookssvc "github.com/bookcircle/bookcircle/internal/app/services/books"
	chatsvc "github.com/bookcircle/bookcircle/internal/app/services/chat"
	eventssvc "github.com/bookcircle/bookcircle/internal/app/services/events"
	librarysvc "github.com/bookcircle/bookcircle/internal/app/services/library"
	userssvc "github.com/bookcircle/bookcircle/internal/app/services/users"
	"github.com/bookcircle/bookcircle/internal/app/storage/memory"
	"github.com/bookcircle/bookcircle/internal/auth"
	"github.com/bookcircle/bookcircle/internal/middleware"
	"github.com/bookcircle/bookcircle/pkg/testutil"
)

type testServer struct {
	router   *mux.Router
	tokens   *auth.TokenManager
	users    *userssvc.Service
	chat     *testutil.FakeChatProvider
	catalog  *testutil.FakeCatalog
	streamer *testutil.FakeStreamer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	tokens, err := auth.NewTokenManager("test-secret", 5*time.Hour, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	chatProvider := testutil.NewFakeChatProvider()
	catalog := &testutil.FakeCatalog{}
	streamer := &testutil.FakeStreamer{}

	users := userssvc.New(store, store, store, store, tokens, nil)
	users.AttachChatTokens(chatProvider)
	library := librarysvc.New(store, store, store, nil)
	events := eventssvc.New(store, store, nil)
	books := bookssvc.New(catalog, nil)
	chat := chatsvc.New(store, store, chatProvider, nil)
	ai := aichatsvc.New(streamer, catalog, nil)

	router := mux.NewRouter()
	handler := New(users, library, events, books, chat, ai, nil)
	authMW := middleware.NewAuthMiddleware(tokens, nil)
	handler.Register(router, authMW.Handler)

	return &testServer{
		router:   router,
		tokens:   tokens,
		users:    users,
		chat:     chatProvider,
		catalog:  catalog,
		streamer: streamer,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// signupAndLogin creates a user and returns its id and access token.
func (ts *testServer) signupAndLogin(t *testing.T, username, email string) (string, string) {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}

	rec = ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    email,
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return created.ID, login.AccessToken
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSignupValidationAndConflict(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/signup", "", map[string]string{"email": "a@b.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}

	ts.signupAndLogin(t, "ana", "ana@example.com")

	rec = ts.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"username": "ana",
		"email":    "ana@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate signup, got %d", rec.Code)
	}
}

func TestLoginResponseShape(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens in login response")
	}
	if res.User.Username != "ana" {
		t.Fatalf("expected user in response, got %+v", res.User)
	}
	if res.StreamToken == "" {
		t.Fatal("expected stream token with working chat provider")
	}

	// Wrong password must look identical to unknown email.
	bad := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "wrong",
	})
	unknown := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "wrong",
	})
	if bad.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", bad.Code, unknown.Code)
	}
	if bad.Body.String() != unknown.Body.String() {
		t.Fatal("login failures must not reveal whether the email exists")
	}
}

func TestRefreshFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "secret123",
	})
	var res loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = ts.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": res.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// An access token is not accepted as a refresh token.
	rec = ts.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": res.AccessToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for access token, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/me", "/api/users", "/api/stream-token", "/api/chat/public-channels"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", path, rec.Code)
		}
	}
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodGet, "/api/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var me struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.ID != id {
		t.Fatalf("expected own id %s, got %s", id, me.ID)
	}
}

func TestBookSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.Volumes = []googlebooks.Volume{{Title: "Rayuela", ISBN: "9788437604572"}}

	rec := ts.do(t, http.MethodGet, "/api/books/search", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without title, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/books/search?title=rayuela", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res struct {
		TotalItems int                  `json:"totalItems"`
		Items      []googlebooks.Volume `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalItems != 1 || len(res.Items) != 1 {
		t.Fatalf("expected one result, got %+v", res)
	}

	ts.catalog.Err = googlebooks.ErrRateLimited
	rec = ts.do(t, http.MethodGet, "/api/books/search?title=rayuela", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on upstream throttle, got %d", rec.Code)
	}
}

func TestEventLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodPost, "/api/events", "", map[string]any{
		"title": "Club de lectura", "date": "2026-10-01", "time": "18:30",
		"category": "club", "location": "Madrid",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ev struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = ts.do(t, http.MethodPost, "/api/events", "", map[string]any{
		"title": "x", "date": "01/10/2026", "time": "18:30",
		"category": "club", "location": "Madrid",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}

	// Token identity is used when the body names no user.
	rec = ts.do(t, http.MethodPost, "/api/events/"+ev.ID+"/signup", token, map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("signup: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, http.MethodPost, "/api/events/"+ev.ID+"/signup", token, map[string]string{"user_id": id})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/events/"+ev.ID+"/users", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("attendees: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ana") {
		t.Fatalf("expected attendee in response: %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodDelete, "/api/events/"+ev.ID+"/signup", token, map[string]string{"user_id": id})
	if rec.Code != http.StatusOK {
		t.Fatalf("unsignup: expected 200, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/events/"+ev.ID+"/signup", token, map[string]string{"user_id": id})
	if rec.Code != http.StatusConflict {
		t.Fatalf("double unsignup: expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, "/api/events/"+ev.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete event: expected 200, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/events/"+ev.ID+"/users", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateEventCoercesCoordinates(t *testing.T) {
	ts := newTestServer(t)

	// Coordinates arrive as numbers or numeric strings depending on the
	// client; garbage becomes null rather than failing the creation.
	rec := ts.do(t, http.MethodPost, "/api/events", "", map[string]any{
		"title": "Club de lectura", "date": "2026-10-01", "time": "18:30",
		"category": "club", "location": "Madrid",
		"lat": "41.2", "lng": "not-a-number",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ev struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Lat == nil || *ev.Lat != 41.2 {
		t.Fatalf("expected lat 41.2, got %v", ev.Lat)
	}
	if ev.Lng != nil {
		t.Fatalf("expected null lng for unparseable value, got %v", *ev.Lng)
	}

	rec = ts.do(t, http.MethodPost, "/api/events", "", map[string]any{
		"title": "Paseo literario", "date": "2026-11-05", "time": "10:00",
		"category": "paseo", "location": "Sevilla",
		"lat": 37.39, "lng": -5.99,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Lat == nil || *ev.Lat != 37.39 || ev.Lng == nil || *ev.Lng != -5.99 {
		t.Fatalf("expected numeric coordinates back, got %v / %v", ev.Lat, ev.Lng)
	}
}

func TestLibraryRoutes(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodPost, "/api/library/"+id+"/books", token, map[string]string{
		"isbn": "978-84-376-0457-2", "title": "Rayuela",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Same isbn with different punctuation is the same book.
	rec = ts.do(t, http.MethodPost, "/api/library/"+id+"/books", token, map[string]string{
		"isbn": "9788437604572", "title": "Rayuela",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate add: expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/library/"+id+"/books", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list struct {
		Books []struct {
			ISBN string `json:"isbn"`
		} `json:"books"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Books) != 1 || list.Books[0].ISBN != "9788437604572" {
		t.Fatalf("expected one normalized book, got %+v", list.Books)
	}

	rec = ts.do(t, http.MethodDelete, "/api/library/"+id+"/books/9788437604572", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/library/"+id+"/books/9788437604572", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove absent: expected 404, got %d", rec.Code)
	}
}

func TestCurrentReadingRoutes(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodGet, "/api/users/"+id+"/current-reading", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"book":null`) {
		t.Fatalf("expected null book, got %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPut, "/api/users/"+id+"/current-reading", token, map[string]string{
		"isbn": "9788437604572", "title": "Rayuela",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/users/"+id+"/current-reading", token, nil)
	if !strings.Contains(rec.Body.String(), "Rayuela") {
		t.Fatalf("expected current book, got %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodDelete, "/api/users/"+id+"/current-reading", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rec.Code)
	}

	// Finished book lands in reading history.
	rec = ts.do(t, http.MethodGet, "/api/users/"+id+"/reading-history", token, nil)
	if !strings.Contains(rec.Body.String(), "Rayuela") {
		t.Fatalf("expected history entry, got %s", rec.Body.String())
	}
}

func TestTop3Routes(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodPut, "/api/users/"+id+"/top3", token, map[string]any{
		"books": []any{map[string]string{"isbn": "1", "title": "A"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short list, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPut, "/api/users/"+id+"/top3", token, map[string]any{
		"books": []any{
			map[string]string{"isbn": "9780001", "title": "A"},
			nil,
			map[string]string{"isbn": "9780003", "title": "C"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set top3: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/users/"+id+"/top3", token, nil)
	var res struct {
		Top3 []struct {
			Position int `json:"position"`
			Book     *struct {
				Title string `json:"title"`
			} `json:"book"`
		} `json:"top3"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Top3) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(res.Top3))
	}
	if res.Top3[0].Book == nil || res.Top3[0].Book.Title != "A" || res.Top3[1].Book != nil {
		t.Fatalf("unexpected top3: %+v", res.Top3)
	}
}

func TestTop3RejectsIncompleteBook(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	// A slot with an isbn but no title is a client error, not a server one.
	rec := ts.do(t, http.MethodPut, "/api/users/"+id+"/top3", token, map[string]any{
		"books": []any{map[string]string{"isbn": "9780001"}, nil, nil},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for titleless book, got %d: %s", rec.Code, rec.Body.String())
	}

	// Same for a current-reading book whose isbn normalizes to nothing.
	rec = ts.do(t, http.MethodPut, "/api/users/"+id+"/current-reading", token, map[string]string{
		"isbn": " - ", "title": "Rayuela",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty normalized isbn, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatRoutes(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	rec := ts.do(t, http.MethodGet, "/api/stream-token", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stream-token: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stream_token") {
		t.Fatalf("expected stream_token in body: %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/chat/create-or-join-channel-by-isbn", token, map[string]any{
		"isbn": "978-84-376-0457-2", "book_title": "Rayuela",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("by-isbn: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ChannelID string `json:"channel_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ChannelID != "book-isbn-9788437604572" {
		t.Fatalf("unexpected channel id %q", created.ChannelID)
	}

	rec = ts.do(t, http.MethodGet, "/api/chat/public-channels", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public-channels: expected 200, got %d", rec.Code)
	}
	var channels struct {
		Channels []publicChannel `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &channels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(channels.Channels) != 1 || channels.Channels[0].ID != created.ChannelID {
		t.Fatalf("unexpected channels: %+v", channels.Channels)
	}

	rec = ts.do(t, http.MethodGet, "/api/chat/channel-members-by-isbn?isbn=9788437604572", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("members: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "members") {
		t.Fatalf("expected members list: %s", rec.Body.String())
	}
}

func TestChatRejectsUnusableISBN(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	// An isbn that normalizes to nothing cannot name a channel.
	rec := ts.do(t, http.MethodPost, "/api/chat/create-or-join-channel-by-isbn", token, map[string]any{
		"isbn": " - ", "book_title": "Rayuela",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("by-isbn: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/chat/channel-members-by-isbn?isbn=%20-%20", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("members: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAIChatStream(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signupAndLogin(t, "ana", "ana@example.com")
	ts.streamer.Fragments = []string{"Te recomiendo ", "Pedro Páramo."}

	rec := ts.do(t, http.MethodPost, "/api/ai-chat", token, map[string]any{
		"message": "Recomiéndame algo",
		"history": []map[string]string{{"role": "user", "content": "hola"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", got)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`data: {"content":"Te recomiendo "}`,
		`data: {"content":"Pedro Páramo."}`,
		"data: [DONE]",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in stream:\n%s", want, body)
		}
	}

	// System prompt and history reach the streamer before the new message.
	if len(ts.streamer.LastInput) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(ts.streamer.LastInput))
	}
	if ts.streamer.LastInput[0].Role != "system" {
		t.Fatalf("expected system prompt first, got %+v", ts.streamer.LastInput[0])
	}
}

func TestAIChatUpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signupAndLogin(t, "ana", "ana@example.com")

	ts.streamer.SetupErr = aichat.ErrRateLimited
	rec := ts.do(t, http.MethodPost, "/api/ai-chat", token, map[string]string{"message": "hola"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on setup throttle, got %d", rec.Code)
	}

	ts.streamer.SetupErr = nil
	ts.streamer.Fragments = []string{"parcial"}
	ts.streamer.Terminal = aichat.Event{Err: fmt.Errorf("upstream cut the stream")}
	rec = ts.do(t, http.MethodPost, "/api/ai-chat", token, map[string]string{"message": "hola"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected committed 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"error"`) || !strings.Contains(body, "data: [DONE]") {
		t.Fatalf("expected terminal error event and end marker:\n%s", body)
	}
}

func TestRandomBook(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.signupAndLogin(t, "ana", "ana@example.com")
	ts.catalog.Random = googlebooks.Volume{Title: "El Aleph", Authors: []string{"Jorge Luis Borges"}}

	rec := ts.do(t, http.MethodGet, "/api/ai-chat/random-book", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "El Aleph") {
		t.Fatalf("expected random book, got %s", rec.Body.String())
	}
}
