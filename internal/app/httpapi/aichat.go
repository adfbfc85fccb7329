package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bookcircle/bookcircle/internal/adapters/aichat"
	"github.com/bookcircle/bookcircle/internal/httputil"
)

type aiChatRequest struct {
	Message string           `json:"message"`
	History []aichat.Message `json:"history"`
}

// handleAIChat proxies the assistant as a server-sent event stream. The
// response is committed once streaming starts, so setup failures return a
// normal JSON error but mid-stream failures surface as an error event
// followed by the end marker.
func (h *Handler) handleAIChat(w http.ResponseWriter, r *http.Request) {
	var req aiChatRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Message == "" {
		httputil.BadRequest(w, "message is required")
		return
	}

	events, err := h.ai.Chat(r.Context(), req.History, req.Message)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		switch {
		case ev.Err != nil:
			h.log.WithError(ev.Err).Warn("Assistant stream failed")
			writeSSE(w, map[string]string{"error": "assistant stream interrupted"})
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
		case ev.Done:
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
		case ev.Content != "":
			writeSSE(w, map[string]string{"content": ev.Content})
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (h *Handler) handleRandomBook(w http.ResponseWriter, r *http.Request) {
	volume, err := h.ai.RandomBook(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, volume)
}
