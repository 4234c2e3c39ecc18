package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultAvatarURL is assigned to accounts that have not chosen a picture.
const DefaultAvatarURL = "https://images.pexels.com/photos/1043471/pexels-photo-1043471.jpeg?auto=compress&cs=tinysrgb&w=150"

const (
	minPasswordRunes = 8
	maxPasswordBytes = 72
	maxNameRunes     = 80
)

// Role selects which side of the marketplace the user is acting on.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Toggle returns the opposite role. Unknown roles become buyer.
func (r Role) Toggle() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// User is an account record.
type User struct {
	ID           string
	Name         string
	Email        string
	AvatarURL    string
	Role         Role
	Rating       float64
	Location     string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public projection of a user.
type Profile struct {
	ID        string
	Name      string
	AvatarURL string
	Role      Role
	Rating    float64
	Location  string
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		Rating:    u.Rating,
		Location:  u.Location,
	}
}

// Session is one signed-in device.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", ErrNameRequired
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		return "", ErrNameTooLong
	}
	return name, nil
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return ErrEmailInvalid
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordRunes {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
