package entities

import "time"

type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteSent     QuoteStatus = "sent"
	QuoteApproved QuoteStatus = "approved"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuotePending, QuoteSent, QuoteApproved, QuoteRejected, QuoteExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether an operator may move a quote from s to next.
// Quotes only move forward; pending is never re-entered.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case QuotePending:
		return next == QuoteSent || next == QuoteApproved || next == QuoteRejected || next == QuoteExpired
	case QuoteSent:
		return next == QuoteApproved || next == QuoteRejected || next == QuoteExpired
	}
	return false
}

var quoteStatuses = []QuoteStatus{QuotePending, QuoteSent, QuoteApproved, QuoteRejected, QuoteExpired}

// Sources lists the statuses from which a quote may move to s, s included.
func (s QuoteStatus) Sources() []QuoteStatus {
	var out []QuoteStatus
	for _, from := range quoteStatuses {
		if from.CanTransitionTo(s) {
			out = append(out, from)
		}
	}
	return out
}

// QuoteValidity is how long a quote stays valid after creation.
const QuoteValidity = 30 * 24 * time.Hour

type Quote struct {
	ID             string      `json:"id"`
	QuoteNumber    string      `json:"quote_number"` // Display code, not guaranteed unique
	CustomerID     string      `json:"customer_id"`
	ChatID         string      `json:"chat_id,omitempty"`
	ServiceType    string      `json:"service_type"`
	PropertyType   string      `json:"property_type,omitempty"`
	Area           float64     `json:"area"`
	Frequency      string      `json:"frequency"`
	Urgency        string      `json:"urgency"`
	Location       string      `json:"location"`
	Description    string      `json:"description"`
	EstimatedValue int64       `json:"estimated_value"`
	Status         QuoteStatus `json:"status"`
	Priority       Priority    `json:"priority"`
	ValidUntil     time.Time   `json:"valid_until"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type QuoteRow struct {
	Quote
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type QuotePatch struct {
	Status         *QuoteStatus `json:"status"`
	Priority       *Priority    `json:"priority"`
	EstimatedValue *int64       `json:"estimated_value"`
}

func (f ListFilter) MatchesQuote(r QuoteRow) bool {
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
	return containsFold(r.QuoteNumber, q) || containsFold(r.CustomerName, q) ||
		containsFold(r.CustomerEmail, q) || containsFold(r.ServiceType, q)
}
