package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
)

const userColumns = `id, name, email, avatar_url, role, rating, location, password_hash, created_at, updated_at`

func scanUser(row rowScanner) (authdomain.User, error) {
	var (
		user      authdomain.User
		role      string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.AvatarURL,
		&role,
		&user.Rating,
		&user.Location,
		&user.PasswordHash,
		&createdAt,
		&updatedAt,
	); err != nil {
		return authdomain.User{}, err
	}
	user.Role = authdomain.Role(role)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

// GetUser returns one user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (authdomain.User, error) {
	if err := s.ready(ctx); err != nil {
		return authdomain.User{}, err
	}
	user, err := scanUser(s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return authdomain.User{}, authdomain.ErrNotFound
	}
	if err != nil {
		return authdomain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail returns one user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (authdomain.User, error) {
	if err := s.ready(ctx); err != nil {
		return authdomain.User{}, err
	}
	user, err := scanUser(s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, authdomain.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return authdomain.User{}, authdomain.ErrNotFound
	}
	if err != nil {
		return authdomain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// PutUser inserts a user.
func (s *Store) PutUser(ctx context.Context, user authdomain.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		authdomain.NormalizeEmail(user.Email),
		user.AvatarURL,
		string(user.Role),
		user.Rating,
		user.Location,
		user.PasswordHash,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return authdomain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// UpdateUser applies mutate to the stored user inside one transaction.
func (s *Store) UpdateUser(ctx context.Context, userID string, mutate func(*authdomain.User) error) (authdomain.User, error) {
	if err := s.ready(ctx); err != nil {
		return authdomain.User{}, err
	}
	var updated authdomain.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return authdomain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if err := mutate(&user); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users
			    SET name = ?, email = ?, avatar_url = ?, role = ?, rating = ?,
			        location = ?, password_hash = ?, updated_at = ?
			  WHERE id = ?`,
			user.Name,
			authdomain.NormalizeEmail(user.Email),
			user.AvatarURL,
			string(user.Role),
			user.Rating,
			user.Location,
			user.PasswordHash,
			toMillis(user.UpdatedAt),
			userID,
		)
		if isUniqueViolation(err) {
			return authdomain.ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return authdomain.User{}, err
	}
	return updated, nil
}

// PutSession inserts or replaces a session.
func (s *Store) PutSession(ctx context.Context, session authdomain.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, created_at = excluded.created_at, expires_at = excluded.expires_at`,
		session.ID, session.UserID, toMillis(session.CreatedAt), toMillis(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (authdomain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return authdomain.Session{}, err
	}
	var (
		session   authdomain.Session
		createdAt int64
		expiresAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&session.ID, &session.UserID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authdomain.Session{}, authdomain.ErrSessionNotFound
	}
	if err != nil {
		return authdomain.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	return session, nil
}

// DeleteSession removes a session. Missing sessions are not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PruneSessions deletes sessions expired at now and returns how many.
func (s *Store) PruneSessions(ctx context.Context, now time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune sessions rows affected: %w", err)
	}
	return int(affected), nil
}
