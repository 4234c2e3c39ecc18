package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/rebazzar/internal/platform/httpx"
	"github.com/louisbranch/rebazzar/internal/services/chat/realtime"
)

type startConversationRequest struct {
	ParticipantID string `json:"participant_id"`
	ListingID     string `json:"listing_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.deps.Chat.ListConversations(r.Context(), principalUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]realtime.SummaryJSON, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, realtime.SummaryView(summary))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"conversations": views})
}

func (h *Handler) startConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, created, err := h.deps.Chat.StartConversation(r.Context(), principalUserID(r), req.ParticipantID, req.ListingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, realtime.SummaryView(summary))
}

func (h *Handler) getMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	userID := principalUserID(r)
	messages, err := h.deps.Chat.GetMessages(r.Context(), conversationID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.deps.Chat.GetConversation(r.Context(), conversationID, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]realtime.MessageJSON, 0, len(messages))
	for _, message := range messages {
		views = append(views, realtime.MessageView(message))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"conversation": realtime.SummaryView(summary),
		"messages":     views,
	})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	message, err := h.deps.Chat.SendMessage(r.Context(), chi.URLParam(r, "conversationID"), principalUserID(r), req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.MessagesSent.Inc()
	}
	h.writeJSON(w, http.StatusCreated, realtime.MessageView(message))
}
