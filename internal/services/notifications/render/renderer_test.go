package render

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestRenderBidReceivedWithRealPrinter(t *testing.T) {
	t.Parallel()

	out := Render(message.NewPrinter(language.English), Input{
		Event:        EventBidReceived,
		ListingTitle: "iPhone 13 Pro",
		AmountCents:  75000,
	})
	if out.Title != "New bid received" {
		t.Fatalf("title = %q", out.Title)
	}
	if out.Content != "You received a bid of $750 for iPhone 13 Pro" {
		t.Fatalf("content = %q", out.Content)
	}
}

func TestRenderMessageReceivedWithRealPrinter(t *testing.T) {
	t.Parallel()

	out := Render(NewLocalizer("en-US"), Input{
		Event:      EventMessageReceived,
		SenderName: "John Smith",
		Preview:    "Is this   still\navailable?",
	})
	if out.Title != "New message" {
		t.Fatalf("title = %q", out.Title)
	}
	if out.Content != "John Smith: Is this still available?" {
		t.Fatalf("content = %q", out.Content)
	}
}

func TestRenderWelcomeLocalized(t *testing.T) {
	t.Parallel()

	en := Render(NewLocalizer("en"), Input{Event: EventWelcome})
	if en.Title != "Welcome to Rebazzar!" || en.Content != "Start exploring items or list something to sell." {
		t.Fatalf("en = %+v", en)
	}
	pt := Render(NewLocalizer("pt-BR", "en"), Input{Event: EventWelcome})
	if pt.Title != "Boas-vindas ao Rebazzar!" {
		t.Fatalf("pt-BR title = %q", pt.Title)
	}
}

func TestRenderFallsBackForUnknownEvent(t *testing.T) {
	t.Parallel()

	loc := fakeLocalizer{values: map[string]string{
		"notification.generic.title":   "Notification",
		"notification.generic.content": "You have a new notification.",
	}}
	out := Render(loc, Input{Event: "unknown.event"})
	if out.Title != "Notification" || out.Content != "You have a new notification." {
		t.Fatalf("out = %+v", out)
	}
}

func TestRenderMissingCatalogEntriesFallBack(t *testing.T) {
	t.Parallel()

	out := Render(fakeLocalizer{}, Input{Event: EventBidReceived, AmountCents: 100})
	if out.Title != defaultGenericTitle || out.Content != defaultGenericContent {
		t.Fatalf("out = %+v", out)
	}
}

func TestRenderWithNilLocalizerReturnsHumanReadableDefaults(t *testing.T) {
	t.Parallel()

	out := Render(nil, Input{Event: EventWelcome})
	if out.Title != defaultGenericTitle || out.Content != defaultGenericContent {
		t.Fatalf("out = %+v", out)
	}
}

func TestRenderDefaultsForMissingFacts(t *testing.T) {
	t.Parallel()

	loc := fakeLocalizer{values: map[string]string{
		"notification.sender.unknown":           "Someone",
		"notification.item.unknown":             "your item",
		"notification.message_received.title":   "New message",
		"notification.message_received.content": "%s: %s",
		"notification.bid_received.title":       "New bid received",
		"notification.bid_received.content":     "You received a bid of %s for %s",
	}}
	msg := Render(loc, Input{Event: EventMessageReceived, Preview: "hey"})
	if msg.Content != "Someone: hey" {
		t.Fatalf("message content = %q", msg.Content)
	}
	bid := Render(loc, Input{Event: EventBidReceived, AmountCents: 500})
	if !strings.HasSuffix(bid.Content, "for your item") {
		t.Fatalf("bid content = %q", bid.Content)
	}
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	en := message.NewPrinter(language.English)
	tests := map[int64]string{
		75000:  "$750",
		150000: "$1,500",
		1999:   "$19.99",
	}
	for cents, want := range tests {
		if got := FormatPrice(en, cents); got != want {
			t.Fatalf("FormatPrice(%d) = %q, want %q", cents, got, want)
		}
	}
	if got := FormatPrice(nil, 500); got != "$5" {
		t.Fatalf("nil localizer = %q", got)
	}
}

func TestPreviewTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", previewLimit+20)
	got := Preview(long)
	if utf8.RuneCountInString(got) != previewLimit {
		t.Fatalf("preview runes = %d, want %d", utf8.RuneCountInString(got), previewLimit)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("preview = %q", got)
	}
}

type fakeLocalizer struct {
	values map[string]string
}

func (f fakeLocalizer) Sprintf(key message.Reference, args ...any) string {
	asString, ok := key.(string)
	if !ok {
		return ""
	}
	template := f.values[asString]
	if template == "" {
		return asString
	}
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}
