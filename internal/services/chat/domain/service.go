// Package domain implements buyer/seller conversations and messages.
package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/louisbranch/rebazzar/internal/platform/id"
)

var (
	// ErrNotFound indicates the conversation is missing or not visible to the caller.
	ErrNotFound = errors.New("conversation not found")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("chat store is not configured")
	// ErrUserIDRequired indicates the acting user id is required.
	ErrUserIDRequired = errors.New("user id is required")
	// ErrParticipantRequired indicates the other participant id is required.
	ErrParticipantRequired = errors.New("participant id is required")
	// ErrSelfConversation indicates a user tried to message themselves.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	// ErrConversationIDRequired indicates a conversation id is required.
	ErrConversationIDRequired = errors.New("conversation id is required")
	// ErrContentRequired indicates an empty message.
	ErrContentRequired = errors.New("message content is required")
	// ErrContentTooLong indicates a message over the length limit.
	ErrContentTooLong = errors.New("message content is too long")
)

// EventType names realtime events.
type EventType string

const (
	EventMessageCreated      EventType = "message.created"
	EventConversationUpdated EventType = "conversation.updated"
)

// Event is one realtime push to a single user.
type Event struct {
	Type         EventType
	Message      *Message
	Conversation *Summary
}

// Store is the persistence boundary for conversations and messages.
type Store interface {
	PutConversation(ctx context.Context, conversation Conversation) error
	GetConversation(ctx context.Context, conversationID string) (Conversation, error)
	ListConversationsByMember(ctx context.Context, userID string) ([]Conversation, error)
	// ListMessages returns messages oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	// FindOrCreateConversation returns the first conversation, by id, that
	// joins the two members of create and satisfies match. When none does it
	// stores create. Lookup and insert happen in one step; created reports
	// whether create was stored.
	FindOrCreateConversation(ctx context.Context, create Conversation, match func(Conversation) bool) (conversation Conversation, created bool, err error)
	// AppendMessage stores message, marks messages addressed to its sender
	// as read and applies mutate to the conversation in one step.
	AppendMessage(ctx context.Context, message Message, mutate func(*Conversation) error) (Conversation, error)
	// MarkConversationRead marks messages addressed to readerID as read and
	// zeroes the reader's unread counter.
	MarkConversationRead(ctx context.Context, conversationID string, readerID string) (Conversation, error)
}

// UserDirectory resolves participants by id.
type UserDirectory interface {
	LookupParticipant(ctx context.Context, userID string) (Participant, error)
}

// ListingLookup resolves listing titles by id.
type ListingLookup interface {
	ListingTitle(ctx context.Context, listingID string) (string, error)
}

// Notifier receives delivered messages.
type Notifier interface {
	MessageSent(ctx context.Context, message Message, sender Participant)
}

// Publisher pushes realtime events to connected users.
type Publisher interface {
	Publish(ctx context.Context, userID string, event Event)
}

// Dependencies groups the optional collaborators of Service.
type Dependencies struct {
	Users     UserDirectory
	Listings  ListingLookup
	Notifier  Notifier
	Publisher Publisher
	// DefaultAvatarURL is shown for participants missing from Users.
	DefaultAvatarURL string
}

// Service orchestrates conversation behavior.
type Service struct {
	store        Store
	deps         Dependencies
	clock        func() time.Time
	newID        func() (string, error)
	newMessageID func(time.Time) (string, error)
}

// NewService constructs chat domain use-cases.
func NewService(store Store, deps Dependencies, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:        store,
		deps:         deps,
		clock:        clock,
		newID:        newID,
		newMessageID: id.NewULID,
	}
}

// ListConversations returns userID's conversations, most recent activity first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]Summary, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	conversations, err := s.store.ListConversationsByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.ID > b.ID
	})
	resolved := make(map[string]Participant)
	summaries := make([]Summary, 0, len(conversations))
	for _, c := range conversations {
		other := c.Other(userID)
		participant, ok := resolved[other]
		if !ok {
			participant = s.participant(ctx, other)
			resolved[other] = participant
		}
		summaries = append(summaries, summarize(c, userID, participant))
	}
	return summaries, nil
}

// GetConversation returns one conversation as seen by userID.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID string) (Summary, error) {
	conversation, err := s.memberConversation(ctx, conversationID, userID)
	if err != nil {
		return Summary{}, err
	}
	return s.summary(ctx, conversation, strings.TrimSpace(userID)), nil
}

// GetMessages returns the thread oldest first and marks it read for userID.
func (s *Service) GetMessages(ctx context.Context, conversationID, userID string) ([]Message, error) {
	conversation, err := s.memberConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if conversation.UnreadFor(userID) > 0 {
		if _, err := s.store.MarkConversationRead(ctx, conversation.ID, userID); err != nil {
			return nil, fmt.Errorf("mark conversation read: %w", err)
		}
	}
	messages, err := s.store.ListMessages(ctx, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// SendMessage appends a message from senderID to the other member.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return Message{}, ErrContentTooLong
	}
	conversation, err := s.memberConversation(ctx, conversationID, senderID)
	if err != nil {
		return Message{}, err
	}
	senderID = strings.TrimSpace(senderID)
	receiverID := conversation.Other(senderID)

	now := s.clock().UTC()
	messageID, err := s.newMessageID(now)
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}
	message := Message{
		ID:             messageID,
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		ListingID:      conversation.ListingID,
		SentAt:         now,
	}
	updated, err := s.store.AppendMessage(ctx, message, func(c *Conversation) error {
		c.LastMessage = content
		c.LastMessageAt = now
		c.SetUnread(receiverID, c.UnreadFor(receiverID)+1)
		c.SetUnread(senderID, 0)
		return nil
	})
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	sender := s.participant(ctx, senderID)
	if s.deps.Notifier != nil {
		s.deps.Notifier.MessageSent(ctx, message, sender)
	}
	if s.deps.Publisher != nil {
		receiver := s.participant(ctx, receiverID)
		s.publishMessage(ctx, senderID, message, summarize(updated, senderID, receiver))
		s.publishMessage(ctx, receiverID, message, summarize(updated, receiverID, sender))
	}
	return message, nil
}

// StartConversation returns the conversation between userID and
// participantID, creating it when none fits. created reports a new thread.
func (s *Service) StartConversation(ctx context.Context, userID, participantID, listingID string) (summary Summary, created bool, err error) {
	if s == nil || s.store == nil {
		return Summary{}, false, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Summary{}, false, ErrUserIDRequired
	}
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Summary{}, false, ErrParticipantRequired
	}
	if participantID == userID {
		return Summary{}, false, ErrSelfConversation
	}
	listingID = strings.TrimSpace(listingID)

	conversationID, err := s.newID()
	if err != nil {
		return Summary{}, false, fmt.Errorf("generate conversation id: %w", err)
	}
	now := s.clock().UTC()
	candidate := Conversation{
		ID:            conversationID,
		ListingID:     listingID,
		ListingTitle:  s.listingTitle(ctx, listingID),
		Members:       [2]Member{{UserID: userID}, {UserID: participantID}},
		LastMessage:   StartedMessage,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	conversation, created, err := s.store.FindOrCreateConversation(ctx, candidate, func(c Conversation) bool {
		return listingID == "" || c.ListingID == listingID
	})
	if err != nil {
		return Summary{}, false, fmt.Errorf("find or create conversation: %w", err)
	}
	if !created {
		return s.summary(ctx, conversation, userID), false, nil
	}
	if s.deps.Publisher != nil {
		starter := s.participant(ctx, userID)
		theirs := summarize(conversation, participantID, starter)
		s.deps.Publisher.Publish(ctx, participantID, Event{Type: EventConversationUpdated, Conversation: &theirs})
	}
	return s.summary(ctx, conversation, userID), true, nil
}

// publishMessage pushes message and the viewer's refreshed summary.
func (s *Service) publishMessage(ctx context.Context, viewerID string, message Message, summary Summary) {
	s.deps.Publisher.Publish(ctx, viewerID, Event{Type: EventMessageCreated, Message: &message})
	s.deps.Publisher.Publish(ctx, viewerID, Event{Type: EventConversationUpdated, Conversation: &summary})
}

func (s *Service) memberConversation(ctx context.Context, conversationID, userID string) (Conversation, error) {
	if s == nil || s.store == nil {
		return Conversation{}, ErrStoreNotConfigured
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return Conversation{}, ErrConversationIDRequired
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Conversation{}, ErrUserIDRequired
	}
	conversation, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	if !conversation.HasMember(userID) {
		return Conversation{}, ErrNotFound
	}
	return conversation, nil
}

func (s *Service) summary(ctx context.Context, c Conversation, viewerID string) Summary {
	return summarize(c, viewerID, s.participant(ctx, c.Other(viewerID)))
}

// participant resolves userID, degrading to a placeholder contact.
func (s *Service) participant(ctx context.Context, userID string) Participant {
	if s.deps.Users != nil {
		if p, err := s.deps.Users.LookupParticipant(ctx, userID); err == nil {
			return p
		}
	}
	return Participant{ID: userID, Name: UnknownParticipantName, AvatarURL: s.deps.DefaultAvatarURL}
}

func (s *Service) listingTitle(ctx context.Context, listingID string) string {
	if listingID == "" {
		return ""
	}
	if s.deps.Listings != nil {
		if title, err := s.deps.Listings.ListingTitle(ctx, listingID); err == nil && title != "" {
			return title
		}
	}
	return UnknownListingTitle
}

func summarize(c Conversation, viewerID string, other Participant) Summary {
	return Summary{
		ConversationID: c.ID,
		Participant:    other,
		ListingID:      c.ListingID,
		ListingTitle:   c.ListingTitle,
		LastMessage:    c.LastMessage,
		LastMessageAt:  c.LastMessageAt,
		UnreadCount:    c.UnreadFor(viewerID),
	}
}
