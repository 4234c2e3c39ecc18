// Package memory provides mutex-guarded in-process persistence for every
// marketplace collection.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/rebazzar/internal/platform/pagination"
	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
)

// Store keeps all collections in maps behind one lock.
type Store struct {
	mu sync.RWMutex

	users        map[string]authdomain.User
	userByEmail  map[string]string
	sessions     map[string]authdomain.Session
	listings     map[string]listingdomain.Listing
	convos       map[string]chatdomain.Conversation
	messages     map[string][]chatdomain.Message
	notes        map[string]notificationsdomain.Notification
	noteByDedupe map[string]string
}

var (
	_ authdomain.Store          = (*Store)(nil)
	_ listingdomain.Store       = (*Store)(nil)
	_ chatdomain.Store          = (*Store)(nil)
	_ notificationsdomain.Store = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]authdomain.User),
		userByEmail:  make(map[string]string),
		sessions:     make(map[string]authdomain.Session),
		listings:     make(map[string]listingdomain.Listing),
		convos:       make(map[string]chatdomain.Conversation),
		messages:     make(map[string][]chatdomain.Message),
		notes:        make(map[string]notificationsdomain.Notification),
		noteByDedupe: make(map[string]string),
	}
}

// Close is a no-op; it lets callers treat stores uniformly.
func (s *Store) Close() error {
	return nil
}

// Users and sessions.

func (s *Store) GetUser(ctx context.Context, userID string) (authdomain.User, error) {
	if err := ctx.Err(); err != nil {
		return authdomain.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return authdomain.User{}, authdomain.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (authdomain.User, error) {
	if err := ctx.Err(); err != nil {
		return authdomain.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.userByEmail[authdomain.NormalizeEmail(email)]
	if !ok {
		return authdomain.User{}, authdomain.ErrNotFound
	}
	return cloneUser(s.users[userID]), nil
}

func (s *Store) PutUser(ctx context.Context, user authdomain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email := authdomain.NormalizeEmail(user.Email)
	if owner, ok := s.userByEmail[email]; ok && owner != user.ID {
		return authdomain.ErrEmailTaken
	}
	if previous, ok := s.users[user.ID]; ok {
		delete(s.userByEmail, authdomain.NormalizeEmail(previous.Email))
	}
	s.users[user.ID] = cloneUser(user)
	s.userByEmail[email] = user.ID
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, mutate func(*authdomain.User) error) (authdomain.User, error) {
	if err := ctx.Err(); err != nil {
		return authdomain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return authdomain.User{}, authdomain.ErrNotFound
	}
	user = cloneUser(user)
	previousEmail := authdomain.NormalizeEmail(user.Email)
	if err := mutate(&user); err != nil {
		return authdomain.User{}, err
	}
	email := authdomain.NormalizeEmail(user.Email)
	if email != previousEmail {
		if owner, taken := s.userByEmail[email]; taken && owner != userID {
			return authdomain.User{}, authdomain.ErrEmailTaken
		}
		delete(s.userByEmail, previousEmail)
		s.userByEmail[email] = userID
	}
	s.users[userID] = user
	return cloneUser(user), nil
}

func (s *Store) PutSession(ctx context.Context, session authdomain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (authdomain.Session, error) {
	if err := ctx.Err(); err != nil {
		return authdomain.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return authdomain.Session{}, authdomain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// PruneSessions drops sessions expired at now and returns how many.
func (s *Store) PruneSessions(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			pruned++
		}
	}
	return pruned, nil
}

func cloneUser(user authdomain.User) authdomain.User {
	user.PasswordHash = append([]byte(nil), user.PasswordHash...)
	return user
}

// Listings.

func (s *Store) PutListing(ctx context.Context, listing listingdomain.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listing.ID] = listing.Clone()
	return nil
}

func (s *Store) GetListing(ctx context.Context, listingID string) (listingdomain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return listingdomain.Listing{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return listingdomain.Listing{}, listingdomain.ErrNotFound
	}
	return listing.Clone(), nil
}

func (s *Store) UpdateListing(ctx context.Context, listingID string, mutate func(*listingdomain.Listing) error) (listingdomain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return listingdomain.Listing{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return listingdomain.Listing{}, listingdomain.ErrNotFound
	}
	listing = listing.Clone()
	if err := mutate(&listing); err != nil {
		return listingdomain.Listing{}, err
	}
	s.listings[listingID] = listing
	return listing.Clone(), nil
}

func (s *Store) DeleteListing(ctx context.Context, listingID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listingID]; !ok {
		return listingdomain.ErrNotFound
	}
	delete(s.listings, listingID)
	return nil
}

func (s *Store) ListListings(ctx context.Context, criteria listingdomain.Criteria) ([]listingdomain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := make([]listingdomain.Listing, 0, len(s.listings))
	for _, listing := range s.listings {
		if criteria.Match(listing) {
			matched = append(matched, listing.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return criteria.Order.Less(matched[i], matched[j])
	})
	if criteria.Offset >= len(matched) {
		return []listingdomain.Listing{}, nil
	}
	matched = matched[criteria.Offset:]
	if criteria.Limit > 0 && len(matched) > criteria.Limit {
		matched = matched[:criteria.Limit]
	}
	return matched, nil
}

// Conversations and messages.

func (s *Store) PutConversation(ctx context.Context, conversation chatdomain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convos[conversation.ID] = conversation
	return nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (chatdomain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return chatdomain.Conversation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.convos[conversationID]
	if !ok {
		return chatdomain.Conversation{}, chatdomain.ErrNotFound
	}
	return conversation, nil
}

func (s *Store) ListConversationsByMember(ctx context.Context, userID string) ([]chatdomain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversations := make([]chatdomain.Conversation, 0)
	for _, conversation := range s.convos {
		if conversation.HasMember(userID) {
			conversations = append(conversations, conversation)
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].ID < conversations[j].ID
	})
	return conversations, nil
}

func (s *Store) FindOrCreateConversation(ctx context.Context, create chatdomain.Conversation, match func(chatdomain.Conversation) bool) (chatdomain.Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return chatdomain.Conversation{}, false, err
	}
	a, b := create.Members[0].UserID, create.Members[1].UserID
	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := make([]chatdomain.Conversation, 0)
	for _, conversation := range s.convos {
		if conversation.Between(a, b) {
			candidates = append(candidates, conversation)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})
	for _, conversation := range candidates {
		if match(conversation) {
			return conversation, false, nil
		}
	}
	s.convos[create.ID] = create
	return create, true, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chatdomain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chatdomain.Message{}, s.messages[conversationID]...), nil
}

func (s *Store) AppendMessage(ctx context.Context, message chatdomain.Message, mutate func(*chatdomain.Conversation) error) (chatdomain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return chatdomain.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.convos[message.ConversationID]
	if !ok {
		return chatdomain.Conversation{}, chatdomain.ErrNotFound
	}
	if err := mutate(&conversation); err != nil {
		return chatdomain.Conversation{}, err
	}
	s.convos[conversation.ID] = conversation
	thread := s.messages[conversation.ID]
	for i := range thread {
		if thread[i].ReceiverID == message.SenderID {
			thread[i].Read = true
		}
	}
	thread = append(thread, message)
	sort.SliceStable(thread, func(i, j int) bool {
		return messageBefore(thread[i], thread[j])
	})
	s.messages[conversation.ID] = thread
	return conversation, nil
}

func (s *Store) MarkConversationRead(ctx context.Context, conversationID string, readerID string) (chatdomain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return chatdomain.Conversation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.convos[conversationID]
	if !ok {
		return chatdomain.Conversation{}, chatdomain.ErrNotFound
	}
	thread := s.messages[conversationID]
	for i := range thread {
		if thread[i].ReceiverID == readerID {
			thread[i].Read = true
		}
	}
	conversation.SetUnread(readerID, 0)
	s.convos[conversationID] = conversation
	return conversation, nil
}

func messageBefore(a, b chatdomain.Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.Before(b.SentAt)
	}
	return a.ID < b.ID
}

// Notifications.

func (s *Store) GetNotificationByDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (notificationsdomain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return notificationsdomain.Notification{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.noteByDedupe[dedupeIndexKey(recipientUserID, dedupeKey)]
	if !ok {
		return notificationsdomain.Notification{}, notificationsdomain.ErrNotFound
	}
	return cloneNotification(s.notes[id]), nil
}

func (s *Store) PutNotification(ctx context.Context, notification notificationsdomain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.DedupeKey != "" {
		key := dedupeIndexKey(notification.RecipientUserID, notification.DedupeKey)
		if owner, ok := s.noteByDedupe[key]; ok && owner != notification.ID {
			return notificationsdomain.ErrConflict
		}
		s.noteByDedupe[key] = notification.ID
	}
	s.notes[notification.ID] = cloneNotification(notification)
	return nil
}

func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (notificationsdomain.Page, error) {
	if err := ctx.Err(); err != nil {
		return notificationsdomain.Page{}, err
	}
	afterAt, afterID, err := pagination.DecodeKeyset(pageToken)
	if err != nil {
		return notificationsdomain.Page{}, notificationsdomain.ErrInvalidPageToken
	}

	s.mu.RLock()
	inbox := make([]notificationsdomain.Notification, 0)
	for _, n := range s.notes {
		if n.RecipientUserID != recipientUserID {
			continue
		}
		if afterID != "" && !notificationAfter(n, afterAt, afterID) {
			continue
		}
		inbox = append(inbox, cloneNotification(n))
	}
	s.mu.RUnlock()

	sort.Slice(inbox, func(i, j int) bool {
		return notificationAfter(inbox[j], inbox[i].CreatedAt, inbox[i].ID)
	})
	page := notificationsdomain.Page{Notifications: inbox}
	if pageSize > 0 && len(inbox) > pageSize {
		page.Notifications = inbox[:pageSize]
		last := page.Notifications[pageSize-1]
		page.NextPageToken = pagination.EncodeKeyset(last.CreatedAt, last.ID)
	}
	return page, nil
}

// notificationAfter reports whether n sorts after (at, id) in newest-first order.
func notificationAfter(n notificationsdomain.Notification, at time.Time, id string) bool {
	createdAt := n.CreatedAt.UTC().Truncate(time.Millisecond)
	at = at.UTC().Truncate(time.Millisecond)
	if !createdAt.Equal(at) {
		return createdAt.Before(at)
	}
	return n.ID < id
}

func (s *Store) CountUnreadNotifications(ctx context.Context, recipientUserID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	unread := 0
	for _, n := range s.notes {
		if n.RecipientUserID == recipientUserID && n.ReadAt == nil {
			unread++
		}
	}
	return unread, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (notificationsdomain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return notificationsdomain.Notification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[notificationID]
	if !ok || n.RecipientUserID != recipientUserID {
		return notificationsdomain.Notification{}, notificationsdomain.ErrNotFound
	}
	if n.ReadAt == nil {
		value := readAt.UTC()
		n.ReadAt = &value
		s.notes[notificationID] = n
	}
	return cloneNotification(n), nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientUserID string, readAt time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for id, n := range s.notes {
		if n.RecipientUserID != recipientUserID || n.ReadAt != nil {
			continue
		}
		value := readAt.UTC()
		n.ReadAt = &value
		s.notes[id] = n
		changed++
	}
	return changed, nil
}

func (s *Store) DeleteNotification(ctx context.Context, recipientUserID string, notificationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[notificationID]
	if !ok || n.RecipientUserID != recipientUserID {
		return notificationsdomain.ErrNotFound
	}
	delete(s.notes, notificationID)
	if n.DedupeKey != "" {
		delete(s.noteByDedupe, dedupeIndexKey(recipientUserID, n.DedupeKey))
	}
	return nil
}

func cloneNotification(n notificationsdomain.Notification) notificationsdomain.Notification {
	if n.ReadAt != nil {
		value := *n.ReadAt
		n.ReadAt = &value
	}
	return n
}

func dedupeIndexKey(recipientUserID, dedupeKey string) string {
	return strings.TrimSpace(recipientUserID) + "\x00" + strings.TrimSpace(dedupeKey)
}
