package entities

import "time"

type EventType string

const (
	EventMessageInsert EventType = "message.insert"
	EventChatInsert    EventType = "chat.insert"
	EventChatUpdate    EventType = "chat.update"
	EventQuoteInsert   EventType = "quote.insert"
	EventQuoteUpdate   EventType = "quote.update"
)

// Topics carried by the change feed.
const (
	TopicChats  = "chats"
	TopicQuotes = "quotes"
)

func ChatTopic(chatID string) string { return "chat:" + chatID }

// ChangeEvent is a row change pushed to subscribers.
type ChangeEvent struct {
	Type    EventType `json:"type"`
	Topic   string    `json:"topic"`
	Chat    *Chat     `json:"chat,omitempty"`
	Message *Message  `json:"message,omitempty"`
	Quote   *Quote    `json:"quote,omitempty"`
	At      time.Time `json:"at"`
}

// Control frames sent over the push channel besides change events.
const (
	FrameSubscribed = "subscribed"
	FrameEvent      = "event"
	FrameError      = "error"
)

// Frame is the envelope written on the websocket.
type Frame struct {
	Type    string       `json:"type"`
	Channel string       `json:"channel,omitempty"`
	Error   string       `json:"error,omitempty"`
	Event   *ChangeEvent `json:"event,omitempty"`
}
