// Package httpapi exposes the marketplace services as JSON over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/rebazzar/internal/platform/errors"
	"github.com/louisbranch/rebazzar/internal/platform/httpx"
	"github.com/louisbranch/rebazzar/internal/platform/metrics"
	"github.com/louisbranch/rebazzar/internal/platform/requestctx"
	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	"github.com/louisbranch/rebazzar/internal/services/auth/token"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	"github.com/louisbranch/rebazzar/internal/services/chat/realtime"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
	"github.com/rs/zerolog"
)

// AuthService is the account surface used by the API.
type AuthService interface {
	Signup(ctx context.Context, input authdomain.SignupInput) (authdomain.User, authdomain.Session, error)
	Login(ctx context.Context, email, password string) (authdomain.User, authdomain.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, sessionID string) (authdomain.User, authdomain.Session, error)
	GetUser(ctx context.Context, userID string) (authdomain.User, error)
	SwitchRole(ctx context.Context, userID string) (authdomain.User, error)
	UpdateProfile(ctx context.Context, userID string, update authdomain.ProfileUpdate) (authdomain.User, error)
}

// TokenCodec issues and verifies bearer tokens.
type TokenCodec interface {
	Issue(userID, sessionID string, expiresAt time.Time) (string, error)
	Verify(raw string) (token.Claims, error)
}

// ListingService is the listing surface used by the API.
type ListingService interface {
	List(ctx context.Context, query listingdomain.Query) (listingdomain.Page, error)
	Get(ctx context.Context, listingID string) (listingdomain.Listing, error)
	Create(ctx context.Context, sellerID string, input listingdomain.CreateInput) (listingdomain.Listing, error)
	Update(ctx context.Context, listingID, actorID string, input listingdomain.UpdateInput) (listingdomain.Listing, error)
	Delete(ctx context.Context, listingID, actorID string) error
	PlaceBid(ctx context.Context, listingID, bidderID string, amountCents int64) (listingdomain.Listing, error)
}

// ChatService is the conversation surface used by the API.
type ChatService interface {
	ListConversations(ctx context.Context, userID string) ([]chatdomain.Summary, error)
	GetConversation(ctx context.Context, conversationID, userID string) (chatdomain.Summary, error)
	GetMessages(ctx context.Context, conversationID, userID string) ([]chatdomain.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (chatdomain.Message, error)
	StartConversation(ctx context.Context, userID, participantID, listingID string) (chatdomain.Summary, bool, error)
}

// NotificationService is the inbox surface used by the API.
type NotificationService interface {
	ListInbox(ctx context.Context, input notificationsdomain.ListInboxInput) (notificationsdomain.Page, error)
	GetUnreadStatus(ctx context.Context, recipientUserID string) (notificationsdomain.UnreadStatus, error)
	MarkRead(ctx context.Context, recipientUserID, notificationID string) (notificationsdomain.Notification, error)
	MarkAllRead(ctx context.Context, recipientUserID string) (int, error)
	Clear(ctx context.Context, recipientUserID, notificationID string) error
}

// Assistant answers help-bot messages.
type Assistant interface {
	Greeting() string
	Reply(text string) (string, error)
}

// Dependencies groups what the handlers need. Metrics, Realtime and
// AuthLimiter are optional.
type Dependencies struct {
	Auth          AuthService
	Tokens        TokenCodec
	Listings      ListingService
	Chat          ChatService
	Notifications NotificationService
	Assistant     Assistant
	Realtime      *realtime.Hub
	Metrics       *metrics.Metrics
	AuthLimiter   *httpx.IPRateLimiter
	Logger        zerolog.Logger
}

// Handler serves the /api routes.
type Handler struct {
	deps Dependencies
}

// New builds the API handler.
func New(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

// Routes registers every API route on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/categories", h.listCategories)
	r.Get("/api/users/{userID}", h.getUserProfile)
	r.Get("/api/listings", h.listListings)
	r.Get("/api/listings/{listingID}", h.getListing)
	r.Get("/api/assistant/messages", h.assistantGreeting)
	r.Post("/api/assistant/messages", h.assistantReply)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RateLimit(h.deps.AuthLimiter, h.deps.Logger, h.deps.Metrics))
		r.Post("/api/auth/signup", h.signup)
		r.Post("/api/auth/login", h.login)
	})

	if h.deps.Realtime != nil {
		r.Method(http.MethodGet, "/api/chat/ws", h.deps.Realtime.Handler(h.websocketUser, httpx.WriteError))
	}

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/auth/logout", h.logout)
		r.Get("/api/me", h.getMe)
		r.Patch("/api/me", h.updateMe)
		r.Post("/api/me/role", h.switchRole)
		r.Get("/api/me/listings", h.myListings)

		r.Post("/api/listings", h.createListing)
		r.Patch("/api/listings/{listingID}", h.updateListing)
		r.Delete("/api/listings/{listingID}", h.deleteListing)
		r.Post("/api/listings/{listingID}/bids", h.placeBid)

		r.Get("/api/conversations", h.listConversations)
		r.Post("/api/conversations", h.startConversation)
		r.Get("/api/conversations/{conversationID}/messages", h.getMessages)
		r.Post("/api/conversations/{conversationID}/messages", h.sendMessage)

		r.Get("/api/notifications", h.listNotifications)
		r.Get("/api/notifications/unread", h.unreadNotifications)
		r.Post("/api/notifications/read-all", h.markAllNotificationsRead)
		r.Post("/api/notifications/{notificationID}/read", h.markNotificationRead)
		r.Delete("/api/notifications/{notificationID}", h.clearNotification)
	})
}

// requireAuth resolves the bearer token to a live session.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.authenticate(r.Context(), bearerToken(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(r.Context(), principal)))
	})
}

// websocketUser accepts the bearer header or a token query parameter, since
// browsers cannot set headers on websocket upgrades.
func (h *Handler) websocketUser(r *http.Request) (string, error) {
	raw := bearerToken(r)
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	principal, err := h.authenticate(r.Context(), raw)
	if err != nil {
		return "", toAppError(err)
	}
	return principal.UserID, nil
}

func (h *Handler) authenticate(ctx context.Context, raw string) (requestctx.Principal, error) {
	if raw == "" {
		return requestctx.Principal{}, apperrors.E(apperrors.KindUnauthorized, "authentication required")
	}
	if h.deps.Tokens == nil || h.deps.Auth == nil {
		return requestctx.Principal{}, apperrors.E(apperrors.KindUnavailable, "authentication is not configured")
	}
	claims, err := h.deps.Tokens.Verify(raw)
	if err != nil {
		return requestctx.Principal{}, err
	}
	user, session, err := h.deps.Auth.Authenticate(ctx, claims.SessionID)
	if err != nil {
		return requestctx.Principal{}, err
	}
	if user.ID != claims.UserID {
		return requestctx.Principal{}, authdomain.ErrUnauthenticated
	}
	return requestctx.Principal{UserID: user.ID, SessionID: session.ID}, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	err = toAppError(err)
	if apperrors.KindOf(err) == apperrors.KindUnknown && !errors.Is(err, context.Canceled) {
		h.deps.Logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	httpx.WriteError(w, err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpx.WriteJSON(w, status, payload); err != nil {
		h.deps.Logger.Debug().Err(err).Msg("write response")
	}
}

func principalUserID(r *http.Request) string {
	return requestctx.UserIDFromContext(r.Context())
}
