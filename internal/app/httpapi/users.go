package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/app/domain/user"
	userssvc "github.com/bookcircle/bookcircle/internal/app/services/users"
	"github.com/bookcircle/bookcircle/internal/httputil"
	"github.com/bookcircle/bookcircle/internal/middleware"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		httputil.BadRequest(w, "Username, email and password are required")
		return
	}

	u, err := h.users.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u.Serialize())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         user.Public `json:"user"`
	StreamToken  string      `json:"stream_token,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.BadRequest(w, "Email and password are required")
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         res.User.Serialize(),
		StreamToken:  res.StreamToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.RefreshToken == "" {
		httputil.BadRequest(w, "refresh_token is required")
		return
	}

	access, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u.Serialize())
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]user.Public, 0, len(users))
	for _, u := range users {
		out = append(out, u.Serialize())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u.Serialize())
}

type updateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	u, err := h.users.Update(r.Context(), mux.Vars(r)["id"], req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u.Serialize())
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"msg": "User deleted"})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.GetProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type updateProfileRequest struct {
	AboutText      *string   `json:"about_text"`
	FavoriteGenres *[]string `json:"favorite_genres"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	p, err := h.users.UpdateProfile(r.Context(), mux.Vars(r)["id"], req.AboutText, req.FavoriteGenres)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type currentReadingRequest struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Thumbnail string `json:"thumbnail"`
}

func (h *Handler) handleSetCurrentReading(w http.ResponseWriter, r *http.Request) {
	var req currentReadingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.ISBN == "" || req.Title == "" {
		httputil.BadRequest(w, "isbn and title are required")
		return
	}

	b, err := h.users.SetCurrentReading(r.Context(), mux.Vars(r)["id"], book.Book{
		ISBN:      req.ISBN,
		Title:     req.Title,
		Author:    req.Author,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"book": b})
}

func (h *Handler) handleGetCurrentReading(w http.ResponseWriter, r *http.Request) {
	b, ok, err := h.users.GetCurrentReading(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !ok {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"book": nil})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"book": b})
}

// handleClearCurrentReading clears the pointer, or removes a past library
// book when the isbn query names a book other than the current one.
func (h *Handler) handleClearCurrentReading(w http.ResponseWriter, r *http.Request) {
	isbn := r.URL.Query().Get("isbn")
	if err := h.users.ClearCurrentReading(r.Context(), mux.Vars(r)["id"], isbn); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"msg": "Current reading cleared"})
}

func (h *Handler) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	books, err := h.users.ReadingHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"books": books})
}

type top3Request struct {
	Books []*currentReadingRequest `json:"books"`
}

func (h *Handler) handleSetTop3(w http.ResponseWriter, r *http.Request) {
	var req top3Request
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	entries := make([]userssvc.Top3Entry, 0, len(req.Books))
	for _, b := range req.Books {
		if b == nil {
			entries = append(entries, userssvc.Top3Entry{})
			continue
		}
		entries = append(entries, userssvc.Top3Entry{Book: &book.Book{
			ISBN:      b.ISBN,
			Title:     b.Title,
			Author:    b.Author,
			Thumbnail: b.Thumbnail,
		}})
	}

	if err := h.users.SetTop3(r.Context(), mux.Vars(r)["id"], entries); err != nil {
		h.respondError(w, r, err)
		return
	}

	view, err := h.users.GetTop3(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"top3": view})
}

func (h *Handler) handleGetTop3(w http.ResponseWriter, r *http.Request) {
	view, err := h.users.GetTop3(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"top3": view})
}
