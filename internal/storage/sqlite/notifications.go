package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/rebazzar/internal/platform/pagination"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
)

const notificationColumns = `id, recipient_user_id, type, title, content, action_url, dedupe_key, created_at, read_at`

func scanNotification(row rowScanner) (notificationsdomain.Notification, error) {
	var (
		notification notificationsdomain.Notification
		kind         string
		createdAt    int64
		readAt       sql.NullInt64
	)
	if err := row.Scan(
		&notification.ID,
		&notification.RecipientUserID,
		&kind,
		&notification.Title,
		&notification.Content,
		&notification.ActionURL,
		&notification.DedupeKey,
		&createdAt,
		&readAt,
	); err != nil {
		return notificationsdomain.Notification{}, err
	}
	notification.Type = notificationsdomain.Type(kind)
	notification.CreatedAt = fromMillis(createdAt)
	if readAt.Valid {
		value := fromMillis(readAt.Int64)
		notification.ReadAt = &value
	}
	return notification, nil
}

func nullableMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

// GetNotificationByDedupeKey returns the recipient's notification holding dedupeKey.
func (s *Store) GetNotificationByDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (notificationsdomain.Notification, error) {
	if err := s.ready(ctx); err != nil {
		return notificationsdomain.Notification{}, err
	}
	notification, err := scanNotification(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		  WHERE recipient_user_id = ? AND dedupe_key = ? AND dedupe_key <> ''`,
		recipientUserID, dedupeKey,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return notificationsdomain.Notification{}, notificationsdomain.ErrNotFound
	}
	if err != nil {
		return notificationsdomain.Notification{}, fmt.Errorf("get notification by dedupe key: %w", err)
	}
	return notification, nil
}

// PutNotification inserts or updates a notification by id.
func (s *Store) PutNotification(ctx context.Context, notification notificationsdomain.Notification) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     recipient_user_id = excluded.recipient_user_id,
		     type = excluded.type,
		     title = excluded.title,
		     content = excluded.content,
		     action_url = excluded.action_url,
		     dedupe_key = excluded.dedupe_key,
		     created_at = excluded.created_at,
		     read_at = excluded.read_at`,
		notification.ID,
		notification.RecipientUserID,
		string(notification.Type),
		notification.Title,
		notification.Content,
		notification.ActionURL,
		notification.DedupeKey,
		toMillis(notification.CreatedAt),
		nullableMillis(notification.ReadAt),
	)
	if isUniqueViolation(err) {
		return notificationsdomain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// ListNotificationsByRecipient returns one newest-first inbox page.
func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (notificationsdomain.Page, error) {
	if err := s.ready(ctx); err != nil {
		return notificationsdomain.Page{}, err
	}
	afterAt, afterID, err := pagination.DecodeKeyset(pageToken)
	if err != nil {
		return notificationsdomain.Page{}, notificationsdomain.ErrInvalidPageToken
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_user_id = ?`
	args := []any{recipientUserID}
	if afterID != "" {
		millis := toMillis(afterAt)
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, millis, millis, afterID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if pageSize > 0 {
		query += ` LIMIT ?`
		args = append(args, pageSize+1)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return notificationsdomain.Page{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	inbox := make([]notificationsdomain.Notification, 0)
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return notificationsdomain.Page{}, fmt.Errorf("scan notification: %w", err)
		}
		inbox = append(inbox, notification)
	}
	if err := rows.Err(); err != nil {
		return notificationsdomain.Page{}, fmt.Errorf("iterate notifications: %w", err)
	}

	page := notificationsdomain.Page{Notifications: inbox}
	if pageSize > 0 && len(inbox) > pageSize {
		page.Notifications = inbox[:pageSize]
		last := page.Notifications[pageSize-1]
		page.NextPageToken = pagination.EncodeKeyset(last.CreatedAt, last.ID)
	}
	return page, nil
}

// CountUnreadNotifications counts the recipient's unread notifications.
func (s *Store) CountUnreadNotifications(ctx context.Context, recipientUserID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_user_id = ? AND read_at IS NULL`,
		recipientUserID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead sets read_at once; later calls keep the first value.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (notificationsdomain.Notification, error) {
	if err := s.ready(ctx); err != nil {
		return notificationsdomain.Notification{}, err
	}
	var updated notificationsdomain.Notification
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE notifications SET read_at = ?
			  WHERE id = ? AND recipient_user_id = ? AND read_at IS NULL`,
			toMillis(readAt), notificationID, recipientUserID,
		); err != nil {
			return fmt.Errorf("mark notification read: %w", err)
		}
		notification, err := scanNotification(tx.QueryRowContext(ctx,
			`SELECT `+notificationColumns+` FROM notifications WHERE id = ? AND recipient_user_id = ?`,
			notificationID, recipientUserID,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return notificationsdomain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get notification: %w", err)
		}
		updated = notification
		return nil
	})
	if err != nil {
		return notificationsdomain.Notification{}, err
	}
	return updated, nil
}

// MarkAllNotificationsRead marks every unread notification and reports how
// many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientUserID string, readAt time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE recipient_user_id = ? AND read_at IS NULL`,
		toMillis(readAt), recipientUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications rows affected: %w", err)
	}
	return int(affected), nil
}

// DeleteNotification removes one of the recipient's notifications.
func (s *Store) DeleteNotification(ctx context.Context, recipientUserID string, notificationID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND recipient_user_id = ?`,
		notificationID, recipientUserID,
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification rows affected: %w", err)
	}
	if affected == 0 {
		return notificationsdomain.ErrNotFound
	}
	return nil
}
