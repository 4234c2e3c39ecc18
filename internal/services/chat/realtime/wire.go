package realtime

import (
	"time"

	"github.com/louisbranch/rebazzar/internal/services/chat/domain"
)

// Frame is one JSON websocket frame.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// MessageJSON is the wire form of a chat message.
type MessageJSON struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	ListingID      string    `json:"listing_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
}

// ParticipantJSON is the wire form of a conversation participant.
type ParticipantJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// SummaryJSON is the wire form of a conversation summary.
type SummaryJSON struct {
	ID              string          `json:"id"`
	Participant     ParticipantJSON `json:"participant"`
	ListingID       string          `json:"listing_id,omitempty"`
	ListingTitle    string          `json:"listing_title,omitempty"`
	LastMessage     string          `json:"last_message"`
	LastMessageTime time.Time       `json:"last_message_time"`
	UnreadCount     int             `json:"unread_count"`
}

// MessageView converts a message to its wire form.
func MessageView(m domain.Message) MessageJSON {
	return MessageJSON{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		ListingID:      m.ListingID,
		Timestamp:      m.SentAt,
		Read:           m.Read,
	}
}

// SummaryView converts a summary to its wire form.
func SummaryView(s domain.Summary) SummaryJSON {
	return SummaryJSON{
		ID: s.ConversationID,
		Participant: ParticipantJSON{
			ID:     s.Participant.ID,
			Name:   s.Participant.Name,
			Avatar: s.Participant.AvatarURL,
		},
		ListingID:       s.ListingID,
		ListingTitle:    s.ListingTitle,
		LastMessage:     s.LastMessage,
		LastMessageTime: s.LastMessageAt,
		UnreadCount:     s.UnreadCount,
	}
}

func eventFrame(event domain.Event) (Frame, bool) {
	switch {
	case event.Type == domain.EventMessageCreated && event.Message != nil:
		return Frame{Type: string(event.Type), Payload: MessageView(*event.Message)}, true
	case event.Type == domain.EventConversationUpdated && event.Conversation != nil:
		return Frame{Type: string(event.Type), Payload: SummaryView(*event.Conversation)}, true
	default:
		return Frame{}, false
	}
}
