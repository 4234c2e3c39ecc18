package server

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/louisbranch/rebazzar/internal/platform/metrics"
	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
	"github.com/louisbranch/rebazzar/internal/services/notifications/render"
)

type fakeUsers struct {
	users map[string]authdomain.User
	err   error
}

func (f fakeUsers) GetUser(_ context.Context, userID string) (authdomain.User, error) {
	if f.err != nil {
		return authdomain.User{}, f.err
	}
	user, ok := f.users[userID]
	if !ok {
		return authdomain.User{}, authdomain.ErrNotFound
	}
	return user, nil
}

type fakeInbox struct {
	created []notificationsdomain.CreateInput
	err     error
}

func (f *fakeInbox) Create(_ context.Context, input notificationsdomain.CreateInput) (notificationsdomain.Notification, error) {
	if f.err != nil {
		return notificationsdomain.Notification{}, f.err
	}
	f.created = append(f.created, input)
	return notificationsdomain.Notification{ID: "n-1", RecipientUserID: input.RecipientUserID, Type: input.Type}, nil
}

func TestUserDirectoryLookupSeller(t *testing.T) {
	t.Parallel()
	dir := userDirectory{users: fakeUsers{users: map[string]authdomain.User{
		"2": {ID: "2", Name: "John Smith", AvatarURL: "https://example.com/john.jpg", Rating: 4.8, Location: "San Francisco, CA"},
	}}}

	seller, err := dir.LookupSeller(context.Background(), "2")
	if err != nil {
		t.Fatalf("lookup seller: %v", err)
	}
	want := listingdomain.Seller{ID: "2", Name: "John Smith", AvatarURL: "https://example.com/john.jpg", Rating: 4.8, Location: "San Francisco, CA"}
	if seller != want {
		t.Fatalf("seller = %+v, want %+v", seller, want)
	}

	if _, err := dir.LookupSeller(context.Background(), "missing"); !errors.Is(err, listingdomain.ErrSellerNotFound) {
		t.Fatalf("missing seller err = %v, want ErrSellerNotFound", err)
	}
	boom := errors.New("boom")
	if _, err := (userDirectory{users: fakeUsers{err: boom}}).LookupSeller(context.Background(), "2"); !errors.Is(err, boom) {
		t.Fatalf("store err = %v, want boom", err)
	}

	participant, err := dir.LookupParticipant(context.Background(), "2")
	if err != nil {
		t.Fatalf("lookup participant: %v", err)
	}
	if participant != (chatdomain.Participant{ID: "2", Name: "John Smith", AvatarURL: "https://example.com/john.jpg"}) {
		t.Fatalf("participant = %+v", participant)
	}
}

func TestNotifierBidPlaced(t *testing.T) {
	t.Parallel()
	inbox := &fakeInbox{}
	m := metrics.New()
	n := &notifier{inbox: inbox, localizer: render.NewLocalizer("en"), metrics: m, logger: zerolog.Nop()}

	listing := listingdomain.Listing{ID: "3", Title: "Mountain Bike", Seller: listingdomain.Seller{ID: "4"}}
	n.BidPlaced(context.Background(), listing, "1", 61000)

	if len(inbox.created) != 1 {
		t.Fatalf("created = %d, want 1", len(inbox.created))
	}
	got := inbox.created[0]
	if got.RecipientUserID != "4" || got.Type != notificationsdomain.TypeBid || got.ActionURL != "/listings/3" || got.DedupeKey != "bid:3:61000" {
		t.Fatalf("bid notification = %+v", got)
	}
	if got.Title != "New bid received" || !strings.Contains(got.Content, "$610") || !strings.Contains(got.Content, "Mountain Bike") {
		t.Fatalf("bid copy = %q / %q", got.Title, got.Content)
	}
	if v := testutil.ToFloat64(m.NotificationsCreated.WithLabelValues(string(notificationsdomain.TypeBid))); v != 1 {
		t.Fatalf("notifications metric = %v", v)
	}
}

func TestNotifierMessageSentAndWelcome(t *testing.T) {
	t.Parallel()
	inbox := &fakeInbox{}
	n := &notifier{inbox: inbox, localizer: render.NewLocalizer(), logger: zerolog.Nop()}

	n.MessageSent(context.Background(), chatdomain.Message{
		ID:             "m-1",
		ConversationID: "c-1",
		SenderID:       "2",
		ReceiverID:     "1",
		Content:        "Is this still available?",
	}, chatdomain.Participant{ID: "2", Name: "John Smith"})
	n.UserSignedUp(context.Background(), authdomain.User{ID: "9"})

	if len(inbox.created) != 2 {
		t.Fatalf("created = %d, want 2", len(inbox.created))
	}
	msg := inbox.created[0]
	if msg.RecipientUserID != "1" || msg.Type != notificationsdomain.TypeMessage || msg.ActionURL != "/messages/c-1" || msg.DedupeKey != "message:m-1" {
		t.Fatalf("message notification = %+v", msg)
	}
	if !strings.Contains(msg.Content, "John Smith") {
		t.Fatalf("message content = %q", msg.Content)
	}
	welcome := inbox.created[1]
	if welcome.RecipientUserID != "9" || welcome.Type != notificationsdomain.TypeSystem || welcome.DedupeKey != "welcome:9" || welcome.Title != "Welcome to Rebazzar!" {
		t.Fatalf("welcome notification = %+v", welcome)
	}
}

func TestNotifierSwallowsInboxErrors(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	n := &notifier{inbox: &fakeInbox{err: errors.New("disk full")}, localizer: render.NewLocalizer(), metrics: m, logger: zerolog.Nop()}

	n.UserSignedUp(context.Background(), authdomain.User{ID: "9"})
	if v := testutil.ToFloat64(m.NotificationsCreated.WithLabelValues(string(notificationsdomain.TypeSystem))); v != 0 {
		t.Fatalf("notifications metric = %v, want 0", v)
	}
}
