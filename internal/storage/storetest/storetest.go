// Package storetest checks that a marketplace store honors the domain
// persistence contracts. Store packages call Run from their tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	"github.com/louisbranch/rebazzar/internal/services/listing/filter"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
)

// Store is the union of the domain store contracts.
type Store interface {
	authdomain.Store
	listingdomain.Store
	chatdomain.Store
	notificationsdomain.Store
}

var base = time.Date(2023, 9, 15, 10, 0, 0, 0, time.UTC)

// Run exercises newStore against every contract. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("listings", func(t *testing.T) { testListings(t, newStore(t)) })
	t.Run("listing query", func(t *testing.T) { testListingQuery(t, newStore(t)) })
	t.Run("conversations", func(t *testing.T) { testConversations(t, newStore(t)) })
	t.Run("find or create conversation", func(t *testing.T) { testFindOrCreateConversation(t, newStore(t)) })
	t.Run("unread counters", func(t *testing.T) { testUnreadCounters(t, newStore) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("notification paging", func(t *testing.T) { testNotificationPaging(t, newStore(t)) })
}

func testUsers(t *testing.T, store Store) {
	ctx := context.Background()
	user := authdomain.User{
		ID: "user-1", Name: "John Doe", Email: "john@example.com", AvatarURL: authdomain.DefaultAvatarURL,
		Role: authdomain.RoleSeller, Rating: 4.8, Location: "San Francisco, CA",
		PasswordHash: []byte("hash"), CreatedAt: base, UpdatedAt: base,
	}
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("put user: %v", err)
	}
	dup := user
	dup.ID = "user-2"
	dup.Email = "JOHN@example.com"
	if err := store.PutUser(ctx, dup); !errors.Is(err, authdomain.ErrEmailTaken) {
		t.Fatalf("duplicate email err = %v, want ErrEmailTaken", err)
	}

	got, err := store.GetUserByEmail(ctx, "John@Example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "user-1" || got.Rating != 4.8 || string(got.PasswordHash) != "hash" || !got.CreatedAt.Equal(base) {
		t.Fatalf("user = %+v", got)
	}
	if _, err := store.GetUser(ctx, "missing"); !errors.Is(err, authdomain.ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}

	updated, err := store.UpdateUser(ctx, "user-1", func(u *authdomain.User) error {
		u.Role = u.Role.Toggle()
		u.Location = "Oakland, CA"
		return nil
	})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Role != authdomain.RoleBuyer || updated.Location != "Oakland, CA" {
		t.Fatalf("updated = %+v", updated)
	}
	abort := errors.New("abort")
	if _, err := store.UpdateUser(ctx, "user-1", func(u *authdomain.User) error {
		u.Name = "Changed"
		return abort
	}); !errors.Is(err, abort) {
		t.Fatalf("aborted update err = %v", err)
	}
	got, _ = store.GetUser(ctx, "user-1")
	if got.Name != "John Doe" {
		t.Fatalf("aborted update persisted: %q", got.Name)
	}
	if _, err := store.UpdateUser(ctx, "missing", func(*authdomain.User) error { return nil }); !errors.Is(err, authdomain.ErrNotFound) {
		t.Fatalf("update missing err = %v", err)
	}
}

func testSessions(t *testing.T, store Store) {
	ctx := context.Background()
	session := authdomain.Session{ID: "s1", UserID: "user-1", CreatedAt: base, ExpiresAt: base.Add(time.Hour)}
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("put session: %v", err)
	}
	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != "user-1" || !got.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("session = %+v", got)
	}
	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete missing session: %v", err)
	}
	if _, err := store.GetSession(ctx, "s1"); !errors.Is(err, authdomain.ErrSessionNotFound) {
		t.Fatalf("deleted session err = %v", err)
	}
}

func sampleListings() []listingdomain.Listing {
	listings := []listingdomain.Listing{
		{ID: "1", Title: "iPhone 13 Pro", Description: "Barely used.", PriceCents: 89900, Images: []string{"https://img/1", "https://img/2"}, Category: "Electronics", Condition: "Like New", Location: "San Francisco, CA", Seller: listingdomain.Seller{ID: "seller-1", Name: "John Doe", AvatarURL: "https://img/john", Rating: 4.8}, Status: listingdomain.StatusActive, IsBiddable: true, HighestBidCents: 75000, HighestBidderID: "buyer-1"},
		{ID: "2", Title: "MacBook Air M1", PriceCents: 75000, Category: "Electronics", Condition: "Good", Location: "New York, NY", Seller: listingdomain.Seller{ID: "seller-2"}, Status: listingdomain.StatusActive, IsBiddable: true},
		{ID: "3", Title: "Office Chair", PriceCents: 12000, Category: "Furniture", Condition: "Good", Location: "Austin, TX", Seller: listingdomain.Seller{ID: "seller-1"}, Status: listingdomain.StatusActive},
		{ID: "4", Title: "Standing Desk", PriceCents: 35000, Category: "furniture", Condition: "Fair", Location: "Seattle, WA", Seller: listingdomain.Seller{ID: "seller-3"}, Status: listingdomain.StatusSold, IsBiddable: true},
	}
	for i := range listings {
		listings[i].CreatedAt = base.Add(time.Duration(i) * time.Hour)
		listings[i].UpdatedAt = listings[i].CreatedAt
	}
	return listings
}

func putListings(t *testing.T, store Store) {
	t.Helper()
	for _, l := range sampleListings() {
		if err := store.PutListing(context.Background(), l); err != nil {
			t.Fatalf("put listing %s: %v", l.ID, err)
		}
	}
}

func testListings(t *testing.T, store Store) {
	ctx := context.Background()
	putListings(t, store)

	got, err := store.GetListing(ctx, "1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	want := sampleListings()[0]
	if got.Title != want.Title || got.PriceCents != want.PriceCents || len(got.Images) != 2 || got.Images[1] != "https://img/2" ||
		got.Seller != want.Seller || got.HighestBidderID != "buyer-1" || !got.IsBiddable || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("listing = %+v", got)
	}

	updated, err := store.UpdateListing(ctx, "1", func(l *listingdomain.Listing) error {
		l.HighestBidCents = 80000
		l.Images = []string{"https://img/3"}
		return nil
	})
	if err != nil {
		t.Fatalf("update listing: %v", err)
	}
	if updated.HighestBidCents != 80000 || len(updated.Images) != 1 {
		t.Fatalf("updated = %+v", updated)
	}
	if _, err := store.UpdateListing(ctx, "1", func(*listingdomain.Listing) error { return listingdomain.ErrBidTooLow }); !errors.Is(err, listingdomain.ErrBidTooLow) {
		t.Fatalf("aborted update err = %v", err)
	}
	if got, _ := store.GetListing(ctx, "1"); got.HighestBidCents != 80000 {
		t.Fatalf("aborted update changed bid to %d", got.HighestBidCents)
	}

	if err := store.DeleteListing(ctx, "2"); err != nil {
		t.Fatalf("delete listing: %v", err)
	}
	if err := store.DeleteListing(ctx, "2"); !errors.Is(err, listingdomain.ErrNotFound) {
		t.Fatalf("delete missing err = %v", err)
	}
	if _, err := store.GetListing(ctx, "2"); !errors.Is(err, listingdomain.ErrNotFound) {
		t.Fatalf("get deleted err = %v", err)
	}
}

func testListingQuery(t *testing.T, store Store) {
	ctx := context.Background()
	putListings(t, store)
	mustFilter := func(raw string) filter.Filter {
		f, err := filter.Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		return f
	}

	tests := []struct {
		name     string
		criteria listingdomain.Criteria
		want     []string
	}{
		{name: "newest", criteria: listingdomain.Criteria{Order: listingdomain.OrderNewest}, want: []string{"4", "3", "2", "1"}},
		{name: "oldest", criteria: listingdomain.Criteria{Order: listingdomain.OrderOldest}, want: []string{"1", "2", "3", "4"}},
		{name: "price low", criteria: listingdomain.Criteria{Order: listingdomain.OrderPriceLow}, want: []string{"3", "4", "2", "1"}},
		{name: "price high", criteria: listingdomain.Criteria{Order: listingdomain.OrderPriceHigh}, want: []string{"1", "2", "4", "3"}},
		{name: "category folds case", criteria: listingdomain.Criteria{Category: "FURNITURE", Order: listingdomain.OrderNewest}, want: []string{"4", "3"}},
		{name: "location substring", criteria: listingdomain.Criteria{Location: "york", Order: listingdomain.OrderNewest}, want: []string{"2"}},
		{name: "seller and status", criteria: listingdomain.Criteria{SellerID: "seller-1", Status: listingdomain.StatusActive, Order: listingdomain.OrderNewest}, want: []string{"3", "1"}},
		{name: "filter", criteria: listingdomain.Criteria{Filter: mustFilter(`is_biddable = true AND (price < 500 OR highest_bid > 0)`), Order: listingdomain.OrderNewest}, want: []string{"4", "1"}},
		{name: "filter has", criteria: listingdomain.Criteria{Filter: mustFilter(`location:"ca" AND NOT (status = "sold")`), Order: listingdomain.OrderNewest}, want: []string{"1"}},
		{name: "limit offset", criteria: listingdomain.Criteria{Order: listingdomain.OrderNewest, Offset: 1, Limit: 2}, want: []string{"3", "2"}},
		{name: "offset past end", criteria: listingdomain.Criteria{Order: listingdomain.OrderNewest, Offset: 10}, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			listings, err := store.ListListings(ctx, tc.criteria)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := make([]string, len(listings))
			for i, l := range listings {
				got[i] = l.ID
			}
			if len(got) != len(tc.want) {
				t.Fatalf("ids = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("ids = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func testConversations(t *testing.T, store Store) {
	ctx := context.Background()
	conversation := chatdomain.Conversation{
		ID: "c1", ListingID: "1", ListingTitle: "iPhone 13 Pro",
		Members:     [2]chatdomain.Member{{UserID: "me"}, {UserID: "john", Unread: 1}},
		LastMessage: chatdomain.StartedMessage, LastMessageAt: base, CreatedAt: base,
	}
	if err := store.PutConversation(ctx, conversation); err != nil {
		t.Fatalf("put conversation: %v", err)
	}
	if err := store.PutConversation(ctx, chatdomain.Conversation{ID: "c2", Members: [2]chatdomain.Member{{UserID: "emma"}, {UserID: "mike"}}, CreatedAt: base}); err != nil {
		t.Fatalf("put conversation: %v", err)
	}

	got, err := store.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.Members != conversation.Members || got.ListingTitle != "iPhone 13 Pro" || !got.LastMessageAt.Equal(base) {
		t.Fatalf("conversation = %+v", got)
	}
	if _, err := store.GetConversation(ctx, "missing"); !errors.Is(err, chatdomain.ErrNotFound) {
		t.Fatalf("missing conversation err = %v", err)
	}
	mine, err := store.ListConversationsByMember(ctx, "john")
	if err != nil {
		t.Fatalf("list by member: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "c1" {
		t.Fatalf("conversations = %+v", mine)
	}

	for i, m := range []chatdomain.Message{
		{ID: "m2", ConversationID: "c1", SenderID: "me", ReceiverID: "john", Content: "Second", ListingID: "1", SentAt: base.Add(2 * time.Minute)},
		{ID: "m1", ConversationID: "c1", SenderID: "john", ReceiverID: "me", Content: "First", SentAt: base.Add(time.Minute)},
	} {
		sentAt := m.SentAt
		updated, err := store.AppendMessage(ctx, m, func(c *chatdomain.Conversation) error {
			c.LastMessage = m.Content
			c.LastMessageAt = sentAt
			c.SetUnread(m.ReceiverID, c.UnreadFor(m.ReceiverID)+1)
			return nil
		})
		if err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
		if updated.LastMessage != m.Content {
			t.Fatalf("append returned %+v", updated)
		}
	}
	if _, err := store.AppendMessage(ctx, chatdomain.Message{ID: "x", ConversationID: "missing"}, func(*chatdomain.Conversation) error { return nil }); !errors.Is(err, chatdomain.ErrNotFound) {
		t.Fatalf("append to missing err = %v", err)
	}

	messages, err := store.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 || messages[0].ID != "m1" || messages[1].ID != "m2" || messages[1].ListingID != "1" {
		t.Fatalf("messages = %+v", messages)
	}

	read, err := store.MarkConversationRead(ctx, "c1", "john")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.UnreadFor("john") != 0 || read.UnreadFor("me") != 1 {
		t.Fatalf("unread after mark read = %+v", read.Members)
	}
	messages, _ = store.ListMessages(ctx, "c1")
	if messages[0].Read || !messages[1].Read {
		t.Fatalf("read flags = %v %v", messages[0].Read, messages[1].Read)
	}
	if empty, err := store.ListMessages(ctx, "c2"); err != nil || len(empty) != 0 {
		t.Fatalf("empty thread = %v, %v", empty, err)
	}
}

func testFindOrCreateConversation(t *testing.T, store Store) {
	ctx := context.Background()
	candidate := func(id, listingID string) chatdomain.Conversation {
		return chatdomain.Conversation{
			ID: id, ListingID: listingID,
			Members:     [2]chatdomain.Member{{UserID: "me"}, {UserID: "john"}},
			LastMessage: chatdomain.StartedMessage, LastMessageAt: base, CreatedAt: base,
		}
	}
	sameListing := func(listingID string) func(chatdomain.Conversation) bool {
		return func(c chatdomain.Conversation) bool { return c.ListingID == listingID }
	}
	if err := store.PutConversation(ctx, chatdomain.Conversation{ID: "c0", ListingID: "1", Members: [2]chatdomain.Member{{UserID: "me"}, {UserID: "emma"}}, CreatedAt: base}); err != nil {
		t.Fatalf("put conversation: %v", err)
	}

	first, created, err := store.FindOrCreateConversation(ctx, candidate("c2", "1"), sameListing("1"))
	if err != nil || !created || first.ID != "c2" {
		t.Fatalf("first = %+v created=%v err=%v", first, created, err)
	}
	reversed := candidate("c3", "1")
	reversed.Members[0], reversed.Members[1] = reversed.Members[1], reversed.Members[0]
	again, created, err := store.FindOrCreateConversation(ctx, reversed, sameListing("1"))
	if err != nil || created || again.ID != "c2" {
		t.Fatalf("reuse = %+v created=%v err=%v", again, created, err)
	}
	if _, err := store.GetConversation(ctx, "c3"); !errors.Is(err, chatdomain.ErrNotFound) {
		t.Fatalf("unused candidate stored: err = %v", err)
	}
	other, created, err := store.FindOrCreateConversation(ctx, candidate("c1", "2"), sameListing("2"))
	if err != nil || !created || other.ID != "c1" {
		t.Fatalf("other listing = %+v created=%v err=%v", other, created, err)
	}
	lowest, created, err := store.FindOrCreateConversation(ctx, candidate("c4", ""), func(chatdomain.Conversation) bool { return true })
	if err != nil || created || lowest.ID != "c1" {
		t.Fatalf("lowest id = %+v created=%v err=%v", lowest, created, err)
	}

	const starters = 8
	var wg sync.WaitGroup
	results := make([]chatdomain.Conversation, starters)
	errs := make([]error, starters)
	for i := range starters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, errs[i] = store.FindOrCreateConversation(ctx, candidate(fmt.Sprintf("race-%d", i), "3"), sameListing("3"))
		}()
	}
	wg.Wait()
	for i := range starters {
		if errs[i] != nil {
			t.Fatalf("concurrent start %d: %v", i, errs[i])
		}
		if results[i].ID != results[0].ID {
			t.Fatalf("concurrent starts diverged: %s vs %s", results[i].ID, results[0].ID)
		}
	}
	threads, err := store.ListConversationsByMember(ctx, "john")
	if err != nil {
		t.Fatalf("list by member: %v", err)
	}
	if len(threads) != 3 {
		t.Fatalf("threads for john = %d, want 3", len(threads))
	}
}

// chatStep is one action in an unread counter scenario.
type chatStep struct {
	user   string
	thread string
	// read opens the thread instead of sending to it.
	read bool
}

func testUnreadCounters(t *testing.T, newStore func(t *testing.T) Store) {
	threads := map[string][2]string{
		"ab": {"alice", "bob"},
		"ac": {"alice", "carol"},
	}
	send := func(user, thread string) chatStep { return chatStep{user: user, thread: thread} }
	open := func(user, thread string) chatStep { return chatStep{user: user, thread: thread, read: true} }

	tests := []struct {
		name  string
		steps []chatStep
	}{
		{name: "reply without reading", steps: []chatStep{
			send("alice", "ab"), send("bob", "ab"), open("bob", "ab"), open("alice", "ab"),
		}},
		{name: "back and forth", steps: []chatStep{
			send("alice", "ab"), send("alice", "ab"), send("bob", "ab"), send("alice", "ab"), send("bob", "ab"), send("bob", "ab"),
		}},
		{name: "read before reply", steps: []chatStep{
			send("bob", "ab"), open("alice", "ab"), send("alice", "ab"), open("alice", "ab"), send("bob", "ab"),
		}},
		{name: "two threads share a member", steps: []chatStep{
			send("bob", "ab"), send("carol", "ac"), send("alice", "ab"), send("carol", "ac"), open("alice", "ac"), send("bob", "ab"), send("alice", "ac"),
		}},
		{name: "reading an empty thread", steps: []chatStep{
			open("alice", "ab"), send("alice", "ab"), open("alice", "ab"), open("bob", "ab"),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			for id, members := range threads {
				conversation := chatdomain.Conversation{ID: id, Members: [2]chatdomain.Member{{UserID: members[0]}, {UserID: members[1]}}, CreatedAt: base}
				if err := store.PutConversation(ctx, conversation); err != nil {
					t.Fatalf("put conversation: %v", err)
				}
			}
			svc := chatdomain.NewService(store, chatdomain.Dependencies{}, nil, nil)

			for i, step := range tc.steps {
				var err error
				if step.read {
					_, err = svc.GetMessages(ctx, step.thread, step.user)
				} else {
					_, err = svc.SendMessage(ctx, step.thread, step.user, fmt.Sprintf("message %d", i))
				}
				if err != nil {
					t.Fatalf("step %d %+v: %v", i, step, err)
				}
				for id, members := range threads {
					assertUnreadMatchesMessages(t, store, id, members, i)
				}
			}
		})
	}
}

func assertUnreadMatchesMessages(t *testing.T, store Store, conversationID string, members [2]string, step int) {
	t.Helper()
	ctx := context.Background()
	conversation, err := store.GetConversation(ctx, conversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	messages, err := store.ListMessages(ctx, conversationID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	for _, member := range members {
		unread := 0
		for _, m := range messages {
			if m.ReceiverID == member && !m.Read {
				unread++
			}
		}
		if got := conversation.UnreadFor(member); got != unread {
			t.Fatalf("after step %d: %s counter = %d, unread messages = %d", step, member, got, unread)
		}
	}
}

func testNotifications(t *testing.T, store Store) {
	ctx := context.Background()
	first := notificationsdomain.Notification{
		ID: "n1", RecipientUserID: "user-1", Type: notificationsdomain.TypeBid, Title: "New bid received",
		Content: "You received a bid of $750 for iPhone 13 Pro", ActionURL: "/listings/1", DedupeKey: "bid:1:75000", CreatedAt: base,
	}
	if err := store.PutNotification(ctx, first); err != nil {
		t.Fatalf("put notification: %v", err)
	}
	clash := first
	clash.ID = "n2"
	if err := store.PutNotification(ctx, clash); !errors.Is(err, notificationsdomain.ErrConflict) {
		t.Fatalf("dedupe clash err = %v, want ErrConflict", err)
	}
	got, err := store.GetNotificationByDedupeKey(ctx, "user-1", "bid:1:75000")
	if err != nil {
		t.Fatalf("get by dedupe key: %v", err)
	}
	if got.ID != "n1" || got.ActionURL != "/listings/1" || got.Read() {
		t.Fatalf("notification = %+v", got)
	}
	if _, err := store.GetNotificationByDedupeKey(ctx, "user-2", "bid:1:75000"); !errors.Is(err, notificationsdomain.ErrNotFound) {
		t.Fatalf("other recipient err = %v", err)
	}
	if err := store.PutNotification(ctx, notificationsdomain.Notification{ID: "n3", RecipientUserID: "user-1", Type: notificationsdomain.TypeSystem, Title: "Welcome", CreatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("put notification: %v", err)
	}

	if count, _ := store.CountUnreadNotifications(ctx, "user-1"); count != 2 {
		t.Fatalf("unread = %d, want 2", count)
	}
	readAt := base.Add(time.Hour)
	marked, err := store.MarkNotificationRead(ctx, "user-1", "n1", readAt)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked.ReadAt == nil || !marked.ReadAt.Equal(readAt) {
		t.Fatalf("read at = %v", marked.ReadAt)
	}
	again, err := store.MarkNotificationRead(ctx, "user-1", "n1", readAt.Add(time.Hour))
	if err != nil || !again.ReadAt.Equal(readAt) {
		t.Fatalf("second mark read = %v, %v", again.ReadAt, err)
	}
	if _, err := store.MarkNotificationRead(ctx, "user-2", "n1", readAt); !errors.Is(err, notificationsdomain.ErrNotFound) {
		t.Fatalf("foreign mark read err = %v", err)
	}
	changed, err := store.MarkAllNotificationsRead(ctx, "user-1", readAt)
	if err != nil || changed != 1 {
		t.Fatalf("mark all read = %d, %v", changed, err)
	}
	if count, _ := store.CountUnreadNotifications(ctx, "user-1"); count != 0 {
		t.Fatalf("unread after mark all = %d", count)
	}

	if err := store.DeleteNotification(ctx, "user-2", "n1"); !errors.Is(err, notificationsdomain.ErrNotFound) {
		t.Fatalf("foreign delete err = %v", err)
	}
	if err := store.DeleteNotification(ctx, "user-1", "n1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetNotificationByDedupeKey(ctx, "user-1", "bid:1:75000"); !errors.Is(err, notificationsdomain.ErrNotFound) {
		t.Fatalf("deleted dedupe err = %v", err)
	}
	if err := store.PutNotification(ctx, clash); err != nil {
		t.Fatalf("dedupe key reusable after delete: %v", err)
	}
}

func testNotificationPaging(t *testing.T, store Store) {
	ctx := context.Background()
	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		at := base.Add(time.Duration(i) * time.Minute)
		if id == "e" {
			at = base.Add(3 * time.Minute)
		}
		if err := store.PutNotification(ctx, notificationsdomain.Notification{ID: id, RecipientUserID: "user-1", Type: notificationsdomain.TypeSystem, Title: id, CreatedAt: at}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	if err := store.PutNotification(ctx, notificationsdomain.Notification{ID: "z", RecipientUserID: "user-2", Type: notificationsdomain.TypeSystem, Title: "z", CreatedAt: base}); err != nil {
		t.Fatalf("put z: %v", err)
	}

	var got []string
	token := ""
	for range 4 {
		page, err := store.ListNotificationsByRecipient(ctx, "user-1", 2, token)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, n := range page.Notifications {
			got = append(got, n.ID)
		}
		token = page.NextPageToken
		if token == "" {
			break
		}
	}
	want := []string{"e", "d", "c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
	if _, err := store.ListNotificationsByRecipient(ctx, "user-1", 2, "%%%"); !errors.Is(err, notificationsdomain.ErrInvalidPageToken) {
		t.Fatalf("bad token err = %v", err)
	}
}
