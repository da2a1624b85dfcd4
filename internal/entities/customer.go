package entities

import "time"

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"` // Optional, collected later in the conversation
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GuestName is used for visitors that have not introduced themselves yet.
const GuestName = "Visitante"

// ContactPatch carries the customer fields that may be filled in later.
type ContactPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

func (p ContactPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil
}
