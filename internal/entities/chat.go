package entities

import (
	"strings"
	"time"
)

type ChatStatus string

const (
	ChatActive  ChatStatus = "active"
	ChatPending ChatStatus = "pending"
	ChatClosed  ChatStatus = "closed"
)

func (s ChatStatus) Valid() bool {
	switch s {
	case ChatActive, ChatPending, ChatClosed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Chat struct {
	ID              string     `json:"id"`
	CustomerID      string     `json:"customer_id"`
	Status          ChatStatus `json:"status"`
	Priority        Priority   `json:"priority"`
	ServiceType     string     `json:"service_type,omitempty"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int        `json:"unread_count"` // Coarse 0/1 signal, not a counter
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ChatRow is a chat joined with the display fields of its customer.
// Empty customer fields mean the customer row is missing or incomplete.
type ChatRow struct {
	Chat
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// ChatPatch is a partial update; nil fields are left untouched.
type ChatPatch struct {
	Status   *ChatStatus `json:"status"`
	Priority *Priority   `json:"priority"`
}

// ListFilter is shared by chat and quote listings. "" and "all" disable a filter.
type ListFilter struct {
	Status   string
	Priority string
	Search   string
	Page     int
	Limit    int
}

func (f ListFilter) StatusValue() string   { return filterValue(f.Status) }
func (f ListFilter) PriorityValue() string { return filterValue(f.Priority) }

func (f ListFilter) SearchValue() string {
	return strings.ToLower(strings.TrimSpace(f.Search))
}

// MatchesChat applies the filter to a joined chat row in memory.
func (f ListFilter) MatchesChat(r ChatRow) bool {
	if s := f.StatusValue(); s != "" && string(r.Status) != s {
		return false
	}
	if p := f.PriorityValue(); p != "" && string(r.Priority) != p {
		return false
	}
	q := f.SearchValue()
	if q == "" {
		return true
	}
	return containsFold(r.CustomerName, q) || containsFold(r.CustomerEmail, q) || containsFold(r.ServiceType, q)
}

func filterValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "all" {
		return ""
	}
	return v
}

func containsFold(field, lowerQuery string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), lowerQuery)
}
