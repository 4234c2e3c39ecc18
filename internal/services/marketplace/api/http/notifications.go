package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/louisbranch/rebazzar/internal/platform/httpx"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
)

type inboxJSON struct {
	Notifications []notificationJSON `json:"notifications"`
	NextPageToken string             `json:"next_page_token,omitempty"`
	UnreadCount   int                `json:"unread_count"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	pageSize, err := httpx.QueryInt(r, "page_size")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recipient := principalUserID(r)
	page, err := h.deps.Notifications.ListInbox(r.Context(), notificationsdomain.ListInboxInput{
		RecipientUserID: recipient,
		PageSize:        pageSize,
		PageToken:       strings.TrimSpace(r.URL.Query().Get("page_token")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := h.deps.Notifications.GetUnreadStatus(r.Context(), recipient)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]notificationJSON, 0, len(page.Notifications))
	for _, n := range page.Notifications {
		views = append(views, notificationView(n))
	}
	h.writeJSON(w, http.StatusOK, inboxJSON{
		Notifications: views,
		NextPageToken: page.NextPageToken,
		UnreadCount:   status.UnreadCount,
	})
}

func (h *Handler) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	status, err := h.deps.Notifications.GetUnreadStatus(r.Context(), principalUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, unreadJSON{UnreadCount: status.UnreadCount, HasUnread: status.HasUnread})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	notification, err := h.deps.Notifications.MarkRead(r.Context(), principalUserID(r), chi.URLParam(r, "notificationID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, notificationView(notification))
}

func (h *Handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.deps.Notifications.MarkAllRead(r.Context(), principalUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"marked_read": changed})
}

func (h *Handler) clearNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Notifications.Clear(r.Context(), principalUserID(r), chi.URLParam(r, "notificationID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
