package entities

import "time"

type EntityType string

const (
	EntityChat     EntityType = "chat"
	EntityQuote    EntityType = "quote"
	EntityCustomer EntityType = "customer"
)

// Activity is an append-only audit row.
type Activity struct {
	ID          string                 `json:"id"`
	EntityType  EntityType             `json:"entity_type"`
	EntityID    string                 `json:"entity_id"`
	Action      string                 `json:"action"` // "created", "updated"
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
