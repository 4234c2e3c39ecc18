package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
)

const conversationColumns = `id, listing_id, listing_title, member_a, unread_a, member_b, unread_b,
	last_message, last_message_at, created_at`

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, listing_id, sent_at, read`

func scanConversation(row rowScanner) (chatdomain.Conversation, error) {
	var (
		conversation  chatdomain.Conversation
		lastMessageAt int64
		createdAt     int64
	)
	if err := row.Scan(
		&conversation.ID,
		&conversation.ListingID,
		&conversation.ListingTitle,
		&conversation.Members[0].UserID,
		&conversation.Members[0].Unread,
		&conversation.Members[1].UserID,
		&conversation.Members[1].Unread,
		&conversation.LastMessage,
		&lastMessageAt,
		&createdAt,
	); err != nil {
		return chatdomain.Conversation{}, err
	}
	conversation.LastMessageAt = fromMillis(lastMessageAt)
	conversation.CreatedAt = fromMillis(createdAt)
	return conversation, nil
}

func scanMessage(row rowScanner) (chatdomain.Message, error) {
	var (
		message chatdomain.Message
		sentAt  int64
		read    int64
	)
	if err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Content,
		&message.ListingID,
		&sentAt,
		&read,
	); err != nil {
		return chatdomain.Message{}, err
	}
	message.SentAt = fromMillis(sentAt)
	message.Read = read != 0
	return message, nil
}

// PutConversation inserts or replaces a conversation header.
func (s *Store) PutConversation(ctx context.Context, conversation chatdomain.Conversation) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := writeConversation(ctx, s.sqlDB, conversation); err != nil {
		return fmt.Errorf("put conversation: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeConversation(ctx context.Context, db execer, conversation chatdomain.Conversation) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversations (`+conversationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conversation.ID,
		conversation.ListingID,
		conversation.ListingTitle,
		conversation.Members[0].UserID,
		conversation.Members[0].Unread,
		conversation.Members[1].UserID,
		conversation.Members[1].Unread,
		conversation.LastMessage,
		toMillis(conversation.LastMessageAt),
		toMillis(conversation.CreatedAt),
	)
	return err
}

// GetConversation returns one conversation header.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (chatdomain.Conversation, error) {
	if err := s.ready(ctx); err != nil {
		return chatdomain.Conversation{}, err
	}
	conversation, err := scanConversation(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, conversationID))
	if errors.Is(err, sql.ErrNoRows) {
		return chatdomain.Conversation{}, chatdomain.ErrNotFound
	}
	if err != nil {
		return chatdomain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conversation, nil
}

// ListConversationsByMember returns every conversation the user belongs to.
func (s *Store) ListConversationsByMember(ctx context.Context, userID string) ([]chatdomain.Conversation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		  WHERE member_a = ? OR member_b = ?
		  ORDER BY id`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]chatdomain.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// FindOrCreateConversation returns the first matching conversation between
// the members of create, inserting create in the same transaction when none
// matches.
func (s *Store) FindOrCreateConversation(ctx context.Context, create chatdomain.Conversation, match func(chatdomain.Conversation) bool) (chatdomain.Conversation, bool, error) {
	if err := s.ready(ctx); err != nil {
		return chatdomain.Conversation{}, false, err
	}
	a, b := create.Members[0].UserID, create.Members[1].UserID
	var (
		found   chatdomain.Conversation
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+conversationColumns+` FROM conversations
			  WHERE (member_a = ? AND member_b = ?) OR (member_a = ? AND member_b = ?)
			  ORDER BY id`,
			a, b, b, a,
		)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		candidates := make([]chatdomain.Conversation, 0)
		for rows.Next() {
			conversation, err := scanConversation(rows)
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan conversation: %w", err)
			}
			candidates = append(candidates, conversation)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("iterate conversations: %w", err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("close conversations: %w", err)
		}
		for _, conversation := range candidates {
			if match(conversation) {
				found = conversation
				return nil
			}
		}
		if err := writeConversation(ctx, tx, create); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		found, created = create, true
		return nil
	})
	if err != nil {
		return chatdomain.Conversation{}, false, err
	}
	return found, created, nil
}

// ListMessages returns a conversation thread oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chatdomain.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		  WHERE conversation_id = ?
		  ORDER BY sent_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chatdomain.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// AppendMessage stores message, marks the sender's inbound messages read
// and applies mutate to the conversation in one transaction.
func (s *Store) AppendMessage(ctx context.Context, message chatdomain.Message, mutate func(*chatdomain.Conversation) error) (chatdomain.Conversation, error) {
	if err := s.ready(ctx); err != nil {
		return chatdomain.Conversation{}, err
	}
	var updated chatdomain.Conversation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		conversation, err := scanConversation(tx.QueryRowContext(ctx,
			`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, message.ConversationID))
		if errors.Is(err, sql.ErrNoRows) {
			return chatdomain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		if err := mutate(&conversation); err != nil {
			return err
		}
		if err := writeConversation(ctx, tx, conversation); err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET read = 1 WHERE conversation_id = ? AND receiver_id = ? AND read = 0`,
			message.ConversationID, message.SenderID,
		); err != nil {
			return fmt.Errorf("mark sender messages read: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			message.ID,
			message.ConversationID,
			message.SenderID,
			message.ReceiverID,
			message.Content,
			message.ListingID,
			toMillis(message.SentAt),
			boolToInt(message.Read),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		updated = conversation
		return nil
	})
	if err != nil {
		return chatdomain.Conversation{}, err
	}
	return updated, nil
}

// MarkConversationRead flags messages addressed to readerID as read and
// clears the reader's unread counter.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID string, readerID string) (chatdomain.Conversation, error) {
	if err := s.ready(ctx); err != nil {
		return chatdomain.Conversation{}, err
	}
	var updated chatdomain.Conversation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		conversation, err := scanConversation(tx.QueryRowContext(ctx,
			`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, conversationID))
		if errors.Is(err, sql.ErrNoRows) {
			return chatdomain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET read = 1 WHERE conversation_id = ? AND receiver_id = ?`,
			conversationID, readerID,
		); err != nil {
			return fmt.Errorf("mark messages read: %w", err)
		}
		conversation.SetUnread(readerID, 0)
		if err := writeConversation(ctx, tx, conversation); err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		updated = conversation
		return nil
	})
	if err != nil {
		return chatdomain.Conversation{}, err
	}
	return updated, nil
}
