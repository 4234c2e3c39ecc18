// Package assistant answers help questions with ordered keyword rules.
package assistant

import (
	"errors"
	"strings"
)

// ErrEmptyInput indicates a blank question.
var ErrEmptyInput = errors.New("message is required")

// Greeting opens every assistant session.
const Greeting = "Hi there! How can I help you with Rebazzar today?"

const fallbackReply = "I'm not sure how to help with that yet. You can ask me about selling items, finding products, or using Rebazzar features."

// Rule maps a lower-case keyword to a reply.
type Rule struct {
	Keyword string
	Reply   string
}

// DefaultRules are evaluated in order; the first contained keyword wins.
var DefaultRules = []Rule{
	{Keyword: "hello", Reply: "Hello! How can I help you today?"},
	{Keyword: "hi", Reply: "Hi there! How can I assist you with Rebazzar?"},
	{Keyword: "help", Reply: "I can help you with listing items, finding products, or answering questions about Rebazzar. What do you need assistance with?"},
	{Keyword: "how to sell", Reply: `To sell an item on Rebazzar, click the "Sell" button in the navigation, fill out the listing details, upload photos, and set your price!`},
	{Keyword: "pricing", Reply: "Pricing on Rebazzar is set by sellers. You can also enable bidding to let buyers make offers on your items."},
}

// Assistant replies from a fixed rule list.
type Assistant struct {
	rules    []Rule
	fallback string
}

// New builds an assistant. Nil rules select DefaultRules.
func New(rules []Rule) *Assistant {
	if rules == nil {
		rules = DefaultRules
	}
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		keyword := strings.ToLower(strings.TrimSpace(r.Keyword))
		if keyword == "" {
			continue
		}
		normalized = append(normalized, Rule{Keyword: keyword, Reply: r.Reply})
	}
	return &Assistant{rules: normalized, fallback: fallbackReply}
}

// Greeting returns the opening line.
func (a *Assistant) Greeting() string {
	return Greeting
}

// Reply answers text with the first matching rule or the fallback.
func (a *Assistant) Reply(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	lower := strings.ToLower(text)
	for _, r := range a.rules {
		if strings.Contains(lower, r.Keyword) {
			return r.Reply, nil
		}
	}
	return a.fallback, nil
}
