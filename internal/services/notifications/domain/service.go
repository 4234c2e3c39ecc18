// Package domain implements the notification inbox use-cases.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/rebazzar/internal/platform/id"
)

var (
	// ErrNotFound indicates a notification record was not found.
	ErrNotFound = errors.New("notification not found")
	// ErrConflict indicates a write conflicted with existing uniqueness constraints.
	ErrConflict = errors.New("notification conflict")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrRecipientUserIDRequired indicates recipient identity is required.
	ErrRecipientUserIDRequired = errors.New("recipient user id is required")
	// ErrTypeInvalid indicates an unknown notification type.
	ErrTypeInvalid = errors.New("notification type must be message, bid or system")
	// ErrTitleRequired indicates a title is required.
	ErrTitleRequired = errors.New("notification title is required")
	// ErrNotificationIDRequired indicates notification ID is required.
	ErrNotificationIDRequired = errors.New("notification id is required")
	// ErrInvalidPageToken indicates a malformed inbox page token.
	ErrInvalidPageToken = errors.New("invalid notification page token")
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Type classifies notifications for display.
type Type string

const (
	TypeMessage Type = "message"
	TypeBid     Type = "bid"
	TypeSystem  Type = "system"
)

// ParseType normalizes a type token and reports whether it is known.
func ParseType(raw string) (Type, bool) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeMessage, TypeBid, TypeSystem:
		return t, true
	default:
		return "", false
	}
}

// Notification captures one user-targeted notification item.
type Notification struct {
	ID              string
	RecipientUserID string
	Type            Type
	Title           string
	Content         string
	ActionURL       string
	DedupeKey       string
	CreatedAt       time.Time
	ReadAt          *time.Time
}

// Read reports whether the recipient acknowledged the notification.
func (n Notification) Read() bool {
	return n.ReadAt != nil
}

// Page is a paged recipient inbox view.
type Page struct {
	Notifications []Notification
	NextPageToken string
}

// UnreadStatus summarizes unread inbox state for one recipient.
type UnreadStatus struct {
	HasUnread   bool
	UnreadCount int
}

// CreateInput describes one producer notification request.
type CreateInput struct {
	RecipientUserID string
	Type            Type
	Title           string
	Content         string
	ActionURL       string
	DedupeKey       string
}

// ListInboxInput configures recipient inbox listing.
type ListInboxInput struct {
	RecipientUserID string
	PageSize        int
	PageToken       string
}

// Store is the persistence boundary for the notification inbox.
type Store interface {
	GetNotificationByDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (Notification, error)
	PutNotification(ctx context.Context, notification Notification) error
	ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (Page, error)
	CountUnreadNotifications(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientUserID string, readAt time.Time) (int, error)
	DeleteNotification(ctx context.Context, recipientUserID string, notificationID string) error
}

// Service orchestrates recipient inbox lifecycle behavior.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs notification domain use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store: store,
		clock: clock,
		newID: newID,
	}
}

// Create stores one notification and de-duplicates by recipient+dedupe key.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	recipientUserID := strings.TrimSpace(input.RecipientUserID)
	if recipientUserID == "" {
		return Notification{}, ErrRecipientUserIDRequired
	}
	notificationType, ok := ParseType(string(input.Type))
	if !ok {
		return Notification{}, ErrTypeInvalid
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Notification{}, ErrTitleRequired
	}
	dedupeKey := strings.TrimSpace(input.DedupeKey)
	if dedupeKey != "" {
		existing, err := s.store.GetNotificationByDedupeKey(ctx, recipientUserID, dedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Notification{}, err
		}
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, err
	}
	notification := Notification{
		ID:              notificationID,
		RecipientUserID: recipientUserID,
		Type:            notificationType,
		Title:           title,
		Content:         strings.TrimSpace(input.Content),
		ActionURL:       strings.TrimSpace(input.ActionURL),
		DedupeKey:       dedupeKey,
		CreatedAt:       s.nowUTC(),
	}
	if err := s.store.PutNotification(ctx, notification); err != nil {
		if dedupeKey != "" && errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetNotificationByDedupeKey(ctx, recipientUserID, dedupeKey)
			if lookupErr == nil {
				return existing, nil
			}
			if errors.Is(lookupErr, ErrNotFound) {
				return Notification{}, err
			}
			return Notification{}, lookupErr
		}
		return Notification{}, err
	}
	return notification, nil
}

// ListInbox lists recipient inbox notifications newest first.
func (s *Service) ListInbox(ctx context.Context, input ListInboxInput) (Page, error) {
	if s == nil || s.store == nil {
		return Page{}, ErrStoreNotConfigured
	}
	recipientUserID := strings.TrimSpace(input.RecipientUserID)
	if recipientUserID == "" {
		return Page{}, ErrRecipientUserIDRequired
	}
	pageSize := input.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return s.store.ListNotificationsByRecipient(ctx, recipientUserID, pageSize, strings.TrimSpace(input.PageToken))
}

// GetUnreadStatus returns the unread count for one recipient.
func (s *Service) GetUnreadStatus(ctx context.Context, recipientUserID string) (UnreadStatus, error) {
	if s == nil || s.store == nil {
		return UnreadStatus{}, ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return UnreadStatus{}, ErrRecipientUserIDRequired
	}
	count, err := s.store.CountUnreadNotifications(ctx, recipientUserID)
	if err != nil {
		return UnreadStatus{}, err
	}
	return UnreadStatus{HasUnread: count > 0, UnreadCount: count}, nil
}

// MarkRead marks one recipient notification as read. Already read
// notifications keep their original read time.
func (s *Service) MarkRead(ctx context.Context, recipientUserID, notificationID string) (Notification, error) {
	recipientUserID, notificationID, err := s.validateTarget(recipientUserID, notificationID)
	if err != nil {
		return Notification{}, err
	}
	return s.store.MarkNotificationRead(ctx, recipientUserID, notificationID, s.nowUTC())
}

// MarkAllRead marks every unread recipient notification as read and returns
// how many changed.
func (s *Service) MarkAllRead(ctx context.Context, recipientUserID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, ErrRecipientUserIDRequired
	}
	return s.store.MarkAllNotificationsRead(ctx, recipientUserID, s.nowUTC())
}

// Clear removes one notification from the recipient inbox.
func (s *Service) Clear(ctx context.Context, recipientUserID, notificationID string) error {
	recipientUserID, notificationID, err := s.validateTarget(recipientUserID, notificationID)
	if err != nil {
		return err
	}
	return s.store.DeleteNotification(ctx, recipientUserID, notificationID)
}

func (s *Service) validateTarget(recipientUserID, notificationID string) (string, string, error) {
	if s == nil || s.store == nil {
		return "", "", ErrStoreNotConfigured
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return "", "", ErrRecipientUserIDRequired
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return "", "", ErrNotificationIDRequired
	}
	return recipientUserID, notificationID, nil
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
