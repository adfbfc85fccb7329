package httpapi

import (
	"net/http"

	"github.com/bookcircle/bookcircle/internal/httputil"
)

func (h *Handler) handleBookSearch(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		httputil.BadRequest(w, "Missing 'title' query param")
		return
	}

	volumes, err := h.books.Search(r.Context(), title)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"totalItems": len(volumes),
		"items":      volumes,
	})
}

func (h *Handler) handleBookByISBN(w http.ResponseWriter, r *http.Request) {
	isbn := r.URL.Query().Get("isbn")
	if isbn == "" {
		httputil.BadRequest(w, "Missing 'isbn' query param")
		return
	}

	volume, err := h.books.LookupISBN(r.Context(), isbn)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if volume.Title == "" {
		httputil.NotFound(w, "Book not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, volume)
}
