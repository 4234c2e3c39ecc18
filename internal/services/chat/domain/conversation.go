package domain

import "time"

const (
	// UnknownParticipantName labels participants missing from the directory.
	UnknownParticipantName = "New Contact"
	// UnknownListingTitle labels conversations whose listing is missing.
	UnknownListingTitle = "Item of interest"
	// StartedMessage is the last message of a freshly started conversation.
	StartedMessage = "Started a conversation"

	maxContentRunes = 2000
)

// Member is one side of a conversation and its unread counter.
type Member struct {
	UserID string
	Unread int
}

// Conversation is a two-member thread, optionally about a listing.
type Conversation struct {
	ID            string
	ListingID     string
	ListingTitle  string
	Members       [2]Member
	LastMessage   string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// memberIndex returns the slot of userID, or -1.
func (c Conversation) memberIndex(userID string) int {
	for i, m := range c.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// HasMember reports whether userID takes part in the conversation.
func (c Conversation) HasMember(userID string) bool {
	return c.memberIndex(userID) >= 0
}

// Other returns the member that is not userID.
func (c Conversation) Other(userID string) string {
	switch c.memberIndex(userID) {
	case 0:
		return c.Members[1].UserID
	case 1:
		return c.Members[0].UserID
	default:
		return ""
	}
}

// UnreadFor returns userID's unread counter.
func (c Conversation) UnreadFor(userID string) int {
	if i := c.memberIndex(userID); i >= 0 {
		return c.Members[i].Unread
	}
	return 0
}

// SetUnread replaces userID's unread counter.
func (c *Conversation) SetUnread(userID string, n int) {
	if i := c.memberIndex(userID); i >= 0 {
		c.Members[i].Unread = n
	}
}

// Between reports whether the conversation joins exactly a and b.
func (c Conversation) Between(a, b string) bool {
	return c.HasMember(a) && c.Other(a) == b
}

// Message is one chat message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	ListingID      string
	SentAt         time.Time
	Read           bool
}

// Participant is the directory view of a user.
type Participant struct {
	ID        string
	Name      string
	AvatarURL string
}

// Summary is a conversation as seen by one member.
type Summary struct {
	ConversationID string
	Participant    Participant
	ListingID      string
	ListingTitle   string
	LastMessage    string
	LastMessageAt  time.Time
	UnreadCount    int
}
