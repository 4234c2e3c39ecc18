package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "notification.generic.title", "Notificação")
	message.SetString(lang, "notification.generic.content", "Você tem uma nova notificação.")
	message.SetString(lang, "notification.sender.unknown", "Alguém")
	message.SetString(lang, "notification.item.unknown", "seu item")
	message.SetString(lang, "notification.welcome.title", "Boas-vindas ao Rebazzar!")
	message.SetString(lang, "notification.welcome.content", "Comece a explorar itens ou anuncie algo para vender.")
	message.SetString(lang, "notification.bid_received.title", "Novo lance recebido")
	message.SetString(lang, "notification.bid_received.content", "Você recebeu um lance de %s por %s")
	message.SetString(lang, "notification.message_received.title", "Nova mensagem")
	message.SetString(lang, "notification.message_received.content", "%s: %s")
	message.SetString(lang, "price.whole", "US$ %d")
	message.SetString(lang, "price.fraction", "US$ %.2f")
}
