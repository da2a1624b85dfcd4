package usecases

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hekumbi_chat/internal/entities"
)

// BasePrice is the AOA price of a 100 m² job at daily frequency, normal urgency.
const BasePrice = 50000

// DefaultArea is assumed by the quote wizard when the customer leaves the area blank.
const DefaultArea = 100

// Frequency multipliers keyed by wizard id, with English aliases.
var frequencyMultipliers = map[string]float64{
	"diaria":     1.0,
	"daily":      1.0,
	"semanal":    0.7,
	"weekly":     0.7,
	"quinzenal":  0.6,
	"biweekly":   0.6,
	"mensal":     0.5,
	"monthly":    0.5,
	"eventual":   1.2,
	"occasional": 1.2,
}

var urgencyMultipliers = map[string]float64{
	"emergencia": 1.5,
	"emergency":  1.5,
	"urgente":    1.2,
	"urgent":     1.2,
}

// PricingCalculator turns wizard parameters into a price, a reference code
// and a priority. It has no dependencies and is safe for concurrent use.
type PricingCalculator struct{}

func NewPricingCalculator() *PricingCalculator {
	return &PricingCalculator{}
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func FrequencyMultiplier(frequencyID string) float64 {
	if m, ok := frequencyMultipliers[normalizeID(frequencyID)]; ok {
		return m
	}
	return 1.0
}

func UrgencyMultiplier(urgencyID string) float64 {
	if m, ok := urgencyMultipliers[normalizeID(urgencyID)]; ok {
		return m
	}
	return 1.0
}

// Estimate returns round(50000 × area/100 × frequency × urgency). Negative
// areas count as zero.
func (pc *PricingCalculator) Estimate(area float64, frequencyID, urgencyID string) int64 {
	if area < 0 || math.IsNaN(area) {
		area = 0
	}
	v := BasePrice * (area / 100) * FrequencyMultiplier(frequencyID) * UrgencyMultiplier(urgencyID)
	return int64(math.Round(v))
}

// QuoteNumber renders the display code "HEK-" plus the last six digits of
// the creation time in Unix milliseconds. It is not unique.
func (pc *PricingCalculator) QuoteNumber(createdAt time.Time) string {
	ms := createdAt.UnixMilli()
	if ms < 0 {
		ms = -ms
	}
	return fmt.Sprintf("HEK-%06d", ms%1000000)
}

func (pc *PricingCalculator) Priority(urgencyID string) entities.Priority {
	switch normalizeID(urgencyID) {
	case "emergencia", "emergency":
		return entities.PriorityHigh
	case "urgente", "urgent":
		return entities.PriorityMedium
	}
	return entities.PriorityLow
}
