// Package domain implements account and session use-cases.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rebazzar/internal/platform/id"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated indicates a missing, expired or revoked session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("auth store is not configured")
	// ErrUserIDRequired indicates a user id is required.
	ErrUserIDRequired = errors.New("user id is required")
	// ErrNameRequired indicates a display name is required.
	ErrNameRequired = errors.New("name is required")
	// ErrNameTooLong indicates the display name exceeds the limit.
	ErrNameTooLong = errors.New("name is too long")
	// ErrEmailRequired indicates an email is required.
	ErrEmailRequired = errors.New("email is required")
	// ErrEmailInvalid indicates a malformed email.
	ErrEmailInvalid = errors.New("email is invalid")
	// ErrPasswordTooShort indicates the password is under the minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong indicates the password exceeds what bcrypt can hash.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// DefaultSessionTTL bounds session lifetime when no TTL is configured.
const DefaultSessionTTL = 24 * time.Hour

// Store is the persistence boundary for accounts and sessions.
type Store interface {
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// PutUser inserts a new user and returns ErrEmailTaken on duplicates.
	PutUser(ctx context.Context, user User) error
	// UpdateUser applies mutate atomically to the stored user.
	UpdateUser(ctx context.Context, userID string, mutate func(*User) error) (User, error)
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Notifier receives account lifecycle events.
type Notifier interface {
	UserSignedUp(ctx context.Context, user User)
}

// Options tunes password hashing and session lifetime.
type Options struct {
	BcryptCost int
	SessionTTL time.Duration
}

// Service orchestrates signup, login and profile changes.
type Service struct {
	store    Store
	notifier Notifier
	clock    func() time.Time
	newID    func() (string, error)
	cost     int
	ttl      time.Duration
	// dummyHash keeps unknown-email logins as slow as wrong-password logins.
	dummyHash []byte
}

// NewService constructs auth use-cases.
func NewService(store Store, notifier Notifier, opts Options, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("rebazzar-dummy-password"), cost)
	return &Service{
		store:     store,
		notifier:  notifier,
		clock:     clock,
		newID:     newID,
		cost:      cost,
		ttl:       ttl,
		dummyHash: dummy,
	}
}

// SignupInput carries new account fields.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// Signup creates a buyer account and opens a session for it.
func (s *Service) Signup(ctx context.Context, input SignupInput) (User, Session, error) {
	if s == nil || s.store == nil {
		return User{}, Session{}, ErrStoreNotConfigured
	}
	name, err := normalizeName(input.Name)
	if err != nil {
		return User{}, Session{}, err
	}
	email := NormalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return User{}, Session{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return User{}, Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return User{}, Session{}, fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.newID()
	if err != nil {
		return User{}, Session{}, fmt.Errorf("generate user id: %w", err)
	}

	now := s.nowUTC()
	user := User{
		ID:           userID,
		Name:         name,
		Email:        email,
		AvatarURL:    DefaultAvatarURL,
		Role:         RoleBuyer,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.PutUser(ctx, user); err != nil {
		return User{}, Session{}, err
	}
	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return User{}, Session{}, err
	}
	if s.notifier != nil {
		s.notifier.UserSignedUp(ctx, user)
	}
	return user, session, nil
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, password string) (User, Session, error) {
	if s == nil || s.store == nil {
		return User{}, Session{}, ErrStoreNotConfigured
	}
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return User{}, Session{}, ErrInvalidCredentials
		}
		return User{}, Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, Session{}, ErrInvalidCredentials
	}
	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

// Logout deletes the session. Unknown sessions are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// Authenticate resolves the live session's user.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (User, Session, error) {
	if s == nil || s.store == nil {
		return User{}, Session{}, ErrStoreNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return User{}, Session{}, ErrUnauthenticated
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return User{}, Session{}, ErrUnauthenticated
		}
		return User{}, Session{}, err
	}
	if session.Expired(s.nowUTC()) {
		_ = s.store.DeleteSession(ctx, sessionID)
		return User{}, Session{}, ErrUnauthenticated
	}
	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, Session{}, ErrUnauthenticated
		}
		return User{}, Session{}, err
	}
	return user, session, nil
}

// GetUser returns one account.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	if s == nil || s.store == nil {
		return User{}, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrUserIDRequired
	}
	return s.store.GetUser(ctx, userID)
}

// SwitchRole flips buyer to seller and back.
func (s *Service) SwitchRole(ctx context.Context, userID string) (User, error) {
	return s.update(ctx, userID, func(user *User) error {
		user.Role = user.Role.Toggle()
		return nil
	})
}

// ProfileUpdate carries optional profile fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	Name      *string
	Location  *string
	AvatarURL *string
}

// UpdateProfile applies a partial profile change.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	var name string
	if update.Name != nil {
		normalized, err := normalizeName(*update.Name)
		if err != nil {
			return User{}, err
		}
		name = normalized
	}
	return s.update(ctx, userID, func(user *User) error {
		if update.Name != nil {
			user.Name = name
		}
		if update.Location != nil {
			user.Location = strings.TrimSpace(*update.Location)
		}
		if update.AvatarURL != nil {
			avatar := strings.TrimSpace(*update.AvatarURL)
			if avatar == "" {
				avatar = DefaultAvatarURL
			}
			user.AvatarURL = avatar
		}
		return nil
	})
}

func (s *Service) update(ctx context.Context, userID string, mutate func(*User) error) (User, error) {
	if s == nil || s.store == nil {
		return User{}, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrUserIDRequired
	}
	now := s.nowUTC()
	return s.store.UpdateUser(ctx, userID, func(user *User) error {
		if err := mutate(user); err != nil {
			return err
		}
		user.UpdatedAt = now
		return nil
	})
}

func (s *Service) openSession(ctx context.Context, userID string) (Session, error) {
	sessionID, err := s.newID()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}
	now := s.nowUTC()
	session := Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.PutSession(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
