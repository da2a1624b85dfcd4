package entities

import "time"

type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAdmin    Sender = "admin"
	SenderBot      Sender = "bot"
)

func (s Sender) Valid() bool {
	switch s {
	case SenderCustomer, SenderAdmin, SenderBot:
		return true
	}
	return false
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile:
		return true
	}
	return false
}

// DeliveryStatus is tracked by clients for their own optimistic echoes.
// Rows coming from the store are always "sent".
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

type Message struct {
	ID          string         `json:"id"`
	ChatID      string         `json:"chat_id"`
	Sender      Sender         `json:"sender"`
	Content     string         `json:"content"`
	MessageType MessageType    `json:"message_type"`
	ClientRef   string         `json:"client_ref,omitempty"` // Echo correlation key set by the sending client
	Delivery    DeliveryStatus `json:"delivery,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewMessage is the input for persisting a message.
type NewMessage struct {
	Sender      Sender
	Content     string
	MessageType MessageType
	ClientRef   string
}
