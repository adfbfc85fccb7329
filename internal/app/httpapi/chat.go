package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	chatsvc "github.com/bookcircle/bookcircle/internal/app/services/chat"
	"github.com/bookcircle/bookcircle/internal/httputil"
	"github.com/bookcircle/bookcircle/internal/middleware"
)

func (h *Handler) handleStreamToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.chat.StreamToken(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"stream_token": token})
}

type createChannelRequest struct {
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
}

func (h *Handler) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.ChannelID) == "" {
		httputil.BadRequest(w, "channel_id is required")
		return
	}

	info, err := h.chat.CreateChannel(r.Context(), middleware.GetUserID(r.Context()), req.ChannelID, req.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"channel_id": info.ID})
}

func (h *Handler) handleJoinChannel(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	if err := h.chat.JoinChannel(r.Context(), middleware.GetUserID(r.Context()), channelID); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"channel_id": channelID})
}

type publicChannel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BookTitle   string `json:"book_title"`
	MemberCount int    `json:"member_count"`
}

func (h *Handler) handlePublicChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.chat.PublicChannels(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]publicChannel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, publicChannel{
			ID:          ch.ID,
			Name:        ch.Name,
			BookTitle:   ch.BookTitle,
			MemberCount: ch.MemberCount,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"channels": out})
}

type createOrJoinByTitleRequest struct {
	BookTitle string `json:"book_title"`
}

func (h *Handler) handleCreateOrJoinChannel(w http.ResponseWriter, r *http.Request) {
	var req createOrJoinByTitleRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.BookTitle) == "" {
		httputil.BadRequest(w, "book_title is required")
		return
	}

	info, err := h.chat.CreateOrJoinChannelByTitle(r.Context(), middleware.GetUserID(r.Context()), req.BookTitle)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"channel_id": info.ID})
}

type createOrJoinByISBNRequest struct {
	ISBN      string   `json:"isbn"`
	BookTitle string   `json:"book_title"`
	Thumbnail string   `json:"thumbnail"`
	Authors   []string `json:"authors"`
}

func (h *Handler) handleCreateOrJoinChannelByISBN(w http.ResponseWriter, r *http.Request) {
	var req createOrJoinByISBNRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.ISBN == "" {
		httputil.BadRequest(w, "isbn is required")
		return
	}

	info, err := h.chat.CreateOrJoinChannelByISBN(r.Context(), middleware.GetUserID(r.Context()), chatsvc.ChannelBook{
		ISBN:      req.ISBN,
		Title:     req.BookTitle,
		Thumbnail: req.Thumbnail,
		Authors:   req.Authors,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"channel_id": info.ID})
}

type channelMember struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Image  string `json:"image,omitempty"`
}

func (h *Handler) handleChannelMembersByISBN(w http.ResponseWriter, r *http.Request) {
	isbn := r.URL.Query().Get("isbn")
	if isbn == "" {
		httputil.BadRequest(w, "Missing 'isbn' query param")
		return
	}

	members, err := h.chat.MembersByISBN(r.Context(), isbn)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]channelMember, 0, len(members))
	for _, m := range members {
		out = append(out, channelMember{UserID: m.UserID, Name: m.Name, Image: m.Image})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *Handler) handleSyncMyAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.SyncMyAvatar(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"msg": "Avatar synced"})
}

func (h *Handler) handleSyncChannelAvatars(w http.ResponseWriter, r *http.Request) {
	updated, err := h.chat.SyncChannelAvatars(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"updated": updated})
}
