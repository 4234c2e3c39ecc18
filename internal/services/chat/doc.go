// Package chat implements buyer/seller conversations.
//
// domain owns conversation state, unread counters and message ordering.
// realtime pushes new messages and summary changes to connected users over
// websockets so clients do not poll.
package chat
