package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/internal/httputil"
)

func (h *Handler) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	books, err := h.library.List(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (h *Handler) handleAddLibraryBook(w http.ResponseWriter, r *http.Request) {
	var req currentReadingRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.ISBN == "" || req.Title == "" {
		httputil.BadRequest(w, "isbn and title are required")
		return
	}

	b, err := h.library.Add(r.Context(), mux.Vars(r)["user_id"], book.Book{
		ISBN:      req.ISBN,
		Title:     req.Title,
		Author:    req.Author,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"book": b})
}

func (h *Handler) handleRemoveLibraryBook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.library.Remove(r.Context(), vars["user_id"], vars["isbn"]); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"msg": "Book removed from library"})
}
