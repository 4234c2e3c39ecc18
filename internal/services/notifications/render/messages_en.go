package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.content", defaultGenericContent)
	message.SetString(lang, "notification.sender.unknown", defaultSomeone)
	message.SetString(lang, "notification.item.unknown", defaultItem)
	message.SetString(lang, "notification.welcome.title", "Welcome to Rebazzar!")
	message.SetString(lang, "notification.welcome.content", "Start exploring items or list something to sell.")
	message.SetString(lang, "notification.bid_received.title", "New bid received")
	message.SetString(lang, "notification.bid_received.content", "You received a bid of %s for %s")
	message.SetString(lang, "notification.message_received.title", "New message")
	message.SetString(lang, "notification.message_received.content", "%s: %s")
	message.SetString(lang, "price.whole", "$%d")
	message.SetString(lang, "price.fraction", "$%.2f")
}
