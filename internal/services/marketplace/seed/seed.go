// Package seed loads the demo marketplace fixtures into a store.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the login password given to every seeded account.
const DefaultPassword = "rebazzar-demo"

//go:embed manifest.json
var manifestJSON []byte

// Manifest is the declarative fixture graph.
type Manifest struct {
	Name          string                 `json:"name"`
	Users         []ManifestUser         `json:"users"`
	Listings      []ManifestListing      `json:"listings"`
	Conversations []ManifestConversation `json:"conversations"`
	Notifications []ManifestNotification `json:"notifications"`
}

// ManifestUser defines one account.
type ManifestUser struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL string  `json:"avatar_url"`
	Role      string  `json:"role"`
	Rating    float64 `json:"rating"`
	Location  string  `json:"location"`
}

// ManifestListing defines one listing; the seller snapshot comes from the
// referenced user.
type ManifestListing struct {
	ID              string    `json:"id"`
	SellerID        string    `json:"seller_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PriceCents      int64     `json:"price_cents"`
	Images          []string  `json:"images"`
	Category        string    `json:"category"`
	Condition       string    `json:"condition"`
	Location        string    `json:"location"`
	CreatedAt       time.Time `json:"created_at"`
	IsBiddable      bool      `json:"is_biddable"`
	HighestBidCents int64     `json:"highest_bid_cents,omitempty"`
	HighestBidderID string    `json:"highest_bidder_id,omitempty"`
}

// ManifestConversation defines one two-member thread.
type ManifestConversation struct {
	ID           string            `json:"id"`
	ListingID    string            `json:"listing_id,omitempty"`
	ListingTitle string            `json:"listing_title,omitempty"`
	Members      [2]string         `json:"members"`
	CreatedAt    time.Time         `json:"created_at"`
	Messages     []ManifestMessage `json:"messages"`
}

// ManifestMessage defines one message; the receiver is the other member.
type ManifestMessage struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
	Read     bool      `json:"read"`
}

// ManifestNotification defines one inbox entry.
type ManifestNotification struct {
	ID              string    `json:"id"`
	RecipientUserID string    `json:"recipient_user_id"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	ActionURL       string    `json:"action_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Read            bool      `json:"read,omitempty"`
}

// Store is the write surface the fixtures need.
type Store interface {
	GetUser(ctx context.Context, userID string) (authdomain.User, error)
	PutUser(ctx context.Context, user authdomain.User) error
	PutListing(ctx context.Context, listing listingdomain.Listing) error
	PutConversation(ctx context.Context, conversation chatdomain.Conversation) error
	AppendMessage(ctx context.Context, message chatdomain.Message, mutate func(*chatdomain.Conversation) error) (chatdomain.Conversation, error)
	PutNotification(ctx context.Context, notification notificationsdomain.Notification) error
}

// Options tunes fixture loading.
type Options struct {
	// Password overrides DefaultPassword.
	Password string
	// BcryptCost defaults to bcrypt.MinCost.
	BcryptCost int
}

// Result reports what Apply wrote.
type Result struct {
	Skipped       bool
	Users         int
	Listings      int
	Conversations int
	Messages      int
	Notifications int
}

// DefaultManifest decodes the embedded demo fixtures.
func DefaultManifest() (Manifest, error) {
	return ParseManifest(manifestJSON)
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode seed manifest: %w", err)
	}
	if err := manifest.validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

func (m Manifest) validate() error {
	users := make(map[string]bool, len(m.Users))
	for _, user := range m.Users {
		if strings.TrimSpace(user.ID) == "" {
			return fmt.Errorf("seed user id is required")
		}
		users[user.ID] = true
	}
	for _, listing := range m.Listings {
		if !users[listing.SellerID] {
			return fmt.Errorf("listing %s: unknown seller %q", listing.ID, listing.SellerID)
		}
	}
	for _, conversation := range m.Conversations {
		if conversation.Members[0] == conversation.Members[1] {
			return fmt.Errorf("conversation %s: members must differ", conversation.ID)
		}
		for _, message := range conversation.Messages {
			if message.SenderID != conversation.Members[0] && message.SenderID != conversation.Members[1] {
				return fmt.Errorf("conversation %s message %s: sender is not a member", conversation.ID, message.ID)
			}
		}
	}
	return nil
}

// Apply writes the manifest into store. A store that already holds the first
// user is left untouched so reopening a persistent database does not
// duplicate fixtures.
func Apply(ctx context.Context, store Store, manifest Manifest, opts Options) (Result, error) {
	if store == nil {
		return Result{}, errors.New("seed store is required")
	}
	if len(manifest.Users) > 0 {
		_, err := store.GetUser(ctx, manifest.Users[0].ID)
		if err == nil {
			return Result{Skipped: true}, nil
		}
		if !errors.Is(err, authdomain.ErrNotFound) {
			return Result{}, fmt.Errorf("look up seed user: %w", err)
		}
	}

	password := opts.Password
	if password == "" {
		password = DefaultPassword
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return Result{}, fmt.Errorf("hash seed password: %w", err)
	}

	var result Result
	users := make(map[string]authdomain.User, len(manifest.Users))
	for _, fixture := range manifest.Users {
		user := fixture.user(hash, seedEpoch(manifest))
		if err := store.PutUser(ctx, user); err != nil {
			return result, fmt.Errorf("seed user %s: %w", fixture.ID, err)
		}
		users[user.ID] = user
		result.Users++
	}
	for _, fixture := range manifest.Listings {
		if err := store.PutListing(ctx, fixture.listing(users[fixture.SellerID])); err != nil {
			return result, fmt.Errorf("seed listing %s: %w", fixture.ID, err)
		}
		result.Listings++
	}
	for _, fixture := range manifest.Conversations {
		written, err := applyConversation(ctx, store, fixture)
		if err != nil {
			return result, err
		}
		result.Conversations++
		result.Messages += written
	}
	for _, fixture := range manifest.Notifications {
		if err := store.PutNotification(ctx, fixture.notification()); err != nil {
			return result, fmt.Errorf("seed notification %s: %w", fixture.ID, err)
		}
		result.Notifications++
	}
	return result, nil
}

func applyConversation(ctx context.Context, store Store, fixture ManifestConversation) (int, error) {
	conversation := chatdomain.Conversation{
		ID:            fixture.ID,
		ListingID:     fixture.ListingID,
		ListingTitle:  fixture.ListingTitle,
		LastMessage:   chatdomain.StartedMessage,
		LastMessageAt: fixture.CreatedAt.UTC(),
		CreatedAt:     fixture.CreatedAt.UTC(),
	}
	conversation.Members[0].UserID = fixture.Members[0]
	conversation.Members[1].UserID = fixture.Members[1]
	if err := store.PutConversation(ctx, conversation); err != nil {
		return 0, fmt.Errorf("seed conversation %s: %w", fixture.ID, err)
	}

	for _, fixture := range fixture.Messages {
		receiverID := conversation.Other(fixture.SenderID)
		message := chatdomain.Message{
			ID:             fixture.ID,
			ConversationID: conversation.ID,
			SenderID:       fixture.SenderID,
			ReceiverID:     receiverID,
			Content:        fixture.Content,
			ListingID:      conversation.ListingID,
			SentAt:         fixture.SentAt.UTC(),
			Read:           fixture.Read,
		}
		if _, err := store.AppendMessage(ctx, message, func(c *chatdomain.Conversation) error {
			c.LastMessage = message.Content
			c.LastMessageAt = message.SentAt
			if !message.Read {
				c.SetUnread(receiverID, c.UnreadFor(receiverID)+1)
			}
			return nil
		}); err != nil {
			return 0, fmt.Errorf("seed message %s: %w", fixture.ID, err)
		}
	}
	return len(fixture.Messages), nil
}

func (u ManifestUser) user(hash []byte, at time.Time) authdomain.User {
	role := authdomain.Role(u.Role)
	if role != authdomain.RoleSeller {
		role = authdomain.RoleBuyer
	}
	avatar := u.AvatarURL
	if avatar == "" {
		avatar = authdomain.DefaultAvatarURL
	}
	return authdomain.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        authdomain.NormalizeEmail(u.Email),
		AvatarURL:    avatar,
		Role:         role,
		Rating:       u.Rating,
		Location:     u.Location,
		PasswordHash: hash,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func (l ManifestListing) listing(seller authdomain.User) listingdomain.Listing {
	createdAt := l.CreatedAt.UTC()
	return listingdomain.Listing{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		PriceCents:  l.PriceCents,
		Images:      append([]string(nil), l.Images...),
		Category:    l.Category,
		Condition:   l.Condition,
		Location:    l.Location,
		Seller: listingdomain.Seller{
			ID:        seller.ID,
			Name:      seller.Name,
			AvatarURL: seller.AvatarURL,
			Rating:    seller.Rating,
			Location:  seller.Location,
		},
		Status:          listingdomain.StatusActive,
		IsBiddable:      l.IsBiddable,
		HighestBidCents: l.HighestBidCents,
		HighestBidderID: l.HighestBidderID,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func (n ManifestNotification) notification() notificationsdomain.Notification {
	notification := notificationsdomain.Notification{
		ID:              n.ID,
		RecipientUserID: n.RecipientUserID,
		Type:            notificationsdomain.Type(n.Type),
		Title:           n.Title,
		Content:         n.Content,
		ActionURL:       n.ActionURL,
		CreatedAt:       n.CreatedAt.UTC(),
	}
	if n.Read {
		readAt := notification.CreatedAt
		notification.ReadAt = &readAt
	}
	return notification
}

// seedEpoch dates seeded accounts just before the oldest fixture.
func seedEpoch(m Manifest) time.Time {
	var oldest time.Time
	for _, listing := range m.Listings {
		if oldest.IsZero() || listing.CreatedAt.Before(oldest) {
			oldest = listing.CreatedAt
		}
	}
	if oldest.IsZero() {
		return time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	}
	return oldest.UTC().Add(-24 * time.Hour)
}
