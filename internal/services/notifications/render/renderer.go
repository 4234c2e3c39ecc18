// Package render produces localized copy for generated notifications.
package render

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Event identifies which generated notification is being rendered.
type Event string

const (
	// EventWelcome greets a newly signed up user.
	EventWelcome Event = "auth.welcome"
	// EventBidReceived tells a seller about a new highest bid.
	EventBidReceived Event = "listing.bid_received"
	// EventMessageReceived tells a user about a new chat message.
	EventMessageReceived Event = "chat.message_received"

	defaultGenericTitle   = "Notification"
	defaultGenericContent = "You have a new notification."
	defaultSomeone        = "Someone"
	defaultItem           = "your item"

	previewLimit = 80
)

// Input carries the event facts interpolated into the copy.
type Input struct {
	Event        Event
	ListingTitle string
	AmountCents  int64
	SenderName   string
	Preview      string
}

// Output is localized copy for one notification.
type Output struct {
	Title   string
	Content string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

var supported = []language.Tag{language.English, language.MustParse("pt-BR")}

var matcher = language.NewMatcher(supported)

// NewLocalizer returns a printer for the best supported match of an
// Accept-Language style preference list. Unknown input falls back to English.
func NewLocalizer(preferences ...string) *message.Printer {
	tag, _ := language.MatchStrings(matcher, preferences...)
	return message.NewPrinter(tag)
}

// Render returns localized copy for one event.
func Render(loc Localizer, input Input) Output {
	switch Event(normalizeToken(string(input.Event))) {
	case EventWelcome:
		return renderWelcome(loc)
	case EventBidReceived:
		return renderBidReceived(loc, input)
	case EventMessageReceived:
		return renderMessageReceived(loc, input)
	default:
		return genericOutput(loc)
	}
}

func renderWelcome(loc Localizer) Output {
	title := localize(loc, "notification.welcome.title")
	content := localize(loc, "notification.welcome.content")
	if title == "notification.welcome.title" || content == "notification.welcome.content" {
		return genericOutput(loc)
	}
	return Output{Title: title, Content: content}
}

func renderBidReceived(loc Localizer, input Input) Output {
	listingTitle := strings.TrimSpace(input.ListingTitle)
	if listingTitle == "" {
		listingTitle = localizeWithFallback(loc, "notification.item.unknown", defaultItem)
	}
	title := localize(loc, "notification.bid_received.title")
	content := localize(loc, "notification.bid_received.content", FormatPrice(loc, input.AmountCents), listingTitle)
	if title == "notification.bid_received.title" || content == "notification.bid_received.content" {
		return genericOutput(loc)
	}
	return Output{Title: title, Content: content}
}

func renderMessageReceived(loc Localizer, input Input) Output {
	sender := strings.TrimSpace(input.SenderName)
	if sender == "" {
		sender = localizeWithFallback(loc, "notification.sender.unknown", defaultSomeone)
	}
	title := localize(loc, "notification.message_received.title")
	content := localize(loc, "notification.message_received.content", sender, Preview(input.Preview))
	if title == "notification.message_received.title" || content == "notification.message_received.content" {
		return genericOutput(loc)
	}
	return Output{Title: title, Content: content}
}

// FormatPrice renders cents as a localized dollar amount. Whole amounts drop
// the fractional part.
func FormatPrice(loc Localizer, cents int64) string {
	if loc == nil {
		loc = message.NewPrinter(language.English)
	}
	if cents%100 == 0 {
		return loc.Sprintf("price.whole", cents/100)
	}
	return loc.Sprintf("price.fraction", float64(cents)/100)
}

// Preview trims content to a single-line snippet for notification bodies.
func Preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= previewLimit {
		return content
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:previewLimit-1])) + "…"
}

func genericOutput(loc Localizer) Output {
	return Output{
		Title:   localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle),
		Content: localizeWithFallback(loc, "notification.generic.content", defaultGenericContent),
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
