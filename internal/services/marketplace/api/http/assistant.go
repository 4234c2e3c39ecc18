package httpapi

import (
	"net/http"

	"github.com/louisbranch/rebazzar/internal/platform/httpx"
)

type assistantRequest struct {
	Message string `json:"message"`
}

type assistantJSON struct {
	Reply string `json:"reply"`
}

func (h *Handler) assistantGreeting(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, assistantJSON{Reply: h.deps.Assistant.Greeting()})
}

func (h *Handler) assistantReply(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	reply, err := h.deps.Assistant.Reply(req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assistantJSON{Reply: reply})
}
