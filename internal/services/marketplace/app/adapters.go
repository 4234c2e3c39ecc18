package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/rebazzar/internal/platform/metrics"
	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
	"github.com/louisbranch/rebazzar/internal/services/notifications/render"
	"github.com/rs/zerolog"
)

type userReader interface {
	GetUser(ctx context.Context, userID string) (authdomain.User, error)
}

// userDirectory resolves sellers and chat participants from accounts.
type userDirectory struct {
	users userReader
}

var (
	_ listingdomain.SellerDirectory = userDirectory{}
	_ chatdomain.UserDirectory      = userDirectory{}
)

func (d userDirectory) LookupSeller(ctx context.Context, userID string) (listingdomain.Seller, error) {
	user, err := d.users.GetUser(ctx, userID)
	if errors.Is(err, authdomain.ErrNotFound) {
		return listingdomain.Seller{}, listingdomain.ErrSellerNotFound
	}
	if err != nil {
		return listingdomain.Seller{}, err
	}
	return listingdomain.Seller{
		ID:        user.ID,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Rating:    user.Rating,
		Location:  user.Location,
	}, nil
}

func (d userDirectory) LookupParticipant(ctx context.Context, userID string) (chatdomain.Participant, error) {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return chatdomain.Participant{}, err
	}
	return chatdomain.Participant{ID: user.ID, Name: user.Name, AvatarURL: user.AvatarURL}, nil
}

type listingReader interface {
	GetListing(ctx context.Context, listingID string) (listingdomain.Listing, error)
}

// listingTitles resolves conversation listing titles.
type listingTitles struct {
	listings listingReader
}

var _ chatdomain.ListingLookup = listingTitles{}

func (l listingTitles) ListingTitle(ctx context.Context, listingID string) (string, error) {
	listing, err := l.listings.GetListing(ctx, listingID)
	if err != nil {
		return "", err
	}
	return listing.Title, nil
}

type notificationCreator interface {
	Create(ctx context.Context, input notificationsdomain.CreateInput) (notificationsdomain.Notification, error)
}

// notifier turns domain events into inbox notifications.
type notifier struct {
	inbox     notificationCreator
	localizer render.Localizer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

var (
	_ authdomain.Notifier    = (*notifier)(nil)
	_ listingdomain.Notifier = (*notifier)(nil)
	_ chatdomain.Notifier    = (*notifier)(nil)
)

func (n *notifier) UserSignedUp(ctx context.Context, user authdomain.User) {
	text := render.Render(n.localizer, render.Input{Event: render.EventWelcome})
	n.create(ctx, notificationsdomain.CreateInput{
		RecipientUserID: user.ID,
		Type:            notificationsdomain.TypeSystem,
		Title:           text.Title,
		Content:         text.Content,
		DedupeKey:       "welcome:" + user.ID,
	})
}

func (n *notifier) BidPlaced(ctx context.Context, listing listingdomain.Listing, bidderID string, amountCents int64) {
	text := render.Render(n.localizer, render.Input{
		Event:        render.EventBidReceived,
		ListingTitle: listing.Title,
		AmountCents:  amountCents,
	})
	n.create(ctx, notificationsdomain.CreateInput{
		RecipientUserID: listing.Seller.ID,
		Type:            notificationsdomain.TypeBid,
		Title:           text.Title,
		Content:         text.Content,
		ActionURL:       "/listings/" + listing.ID,
		DedupeKey:       fmt.Sprintf("bid:%s:%d", listing.ID, amountCents),
	})
}

func (n *notifier) MessageSent(ctx context.Context, message chatdomain.Message, sender chatdomain.Participant) {
	text := render.Render(n.localizer, render.Input{
		Event:      render.EventMessageReceived,
		SenderName: sender.Name,
		Preview:    message.Content,
	})
	n.create(ctx, notificationsdomain.CreateInput{
		RecipientUserID: message.ReceiverID,
		Type:            notificationsdomain.TypeMessage,
		Title:           text.Title,
		Content:         text.Content,
		ActionURL:       "/messages/" + message.ConversationID,
		DedupeKey:       "message:" + message.ID,
	})
}

func (n *notifier) create(ctx context.Context, input notificationsdomain.CreateInput) {
	if n == nil || n.inbox == nil {
		return
	}
	created, err := n.inbox.Create(ctx, input)
	if err != nil {
		n.logger.Error().Err(err).
			Str("recipient_user_id", input.RecipientUserID).
			Str("type", string(input.Type)).
			Msg("create notification")
		return
	}
	if n.metrics != nil {
		n.metrics.NotificationsCreated.WithLabelValues(string(created.Type)).Inc()
	}
}
