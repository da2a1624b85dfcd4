package usecases

import (
	"context"
	"math"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"
)

const (
	RecentActivityLimit = 10

	// monthlyRevenueShare is the fixed share of total revenue reported as
	// "monthly". It is an estimate, not a windowed sum.
	monthlyRevenueShare = 0.3
	revenueWindow       = 30 * 24 * time.Hour
)

type Overview struct {
	TotalChats        int     `json:"totalChats"`
	ActiveChats       int     `json:"activeChats"`
	TotalQuotes       int     `json:"totalQuotes"`
	PendingQuotes     int     `json:"pendingQuotes"`
	ApprovedQuotes    int     `json:"approvedQuotes"`
	TotalRevenue      int64   `json:"totalRevenue"`
	MonthlyRevenue    float64 `json:"monthlyRevenue"`
	RevenueLast30Days int64   `json:"revenueLast30Days"`
	ConversionRate    int     `json:"conversionRate"`
}

type ActivityView struct {
	ID          string              `json:"id"`
	Type        entities.EntityType `json:"type"`
	Description string              `json:"description"`
	Timestamp   time.Time           `json:"timestamp"`
}

type Analytics struct {
	Overview       Overview       `json:"overview"`
	RecentActivity []ActivityView `json:"recentActivity"`
}

// DashboardUsecase aggregates the admin analytics overview.
type DashboardUsecase struct {
	store interfaces.RecordStore
	now   func() time.Time
}

func NewDashboardUsecase(store interfaces.RecordStore) *DashboardUsecase {
	return &DashboardUsecase{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Overview counts chats and quotes, sums revenue over every quote regardless
// of status, and lists the most recent activity.
func (u *DashboardUsecase) Overview(ctx context.Context) (*Analytics, error) {
	chats, err := u.store.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	quotes, err := u.store.ListQuotes(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := u.store.RecentActivities(ctx, RecentActivityLimit)
	if err != nil {
		return nil, err
	}

	var ov Overview
	ov.TotalChats = len(chats)
	for _, c := range chats {
		if c.Status == entities.ChatActive {
			ov.ActiveChats++
		}
	}

	since := u.now().Add(-revenueWindow)
	ov.TotalQuotes = len(quotes)
	for _, q := range quotes {
		switch q.Status {
		case entities.QuotePending:
			ov.PendingQuotes++
		case entities.QuoteApproved:
			ov.ApprovedQuotes++
		}
		ov.TotalRevenue += q.EstimatedValue
		if !q.CreatedAt.Before(since) {
			ov.RevenueLast30Days += q.EstimatedValue
		}
	}
	ov.MonthlyRevenue = float64(ov.TotalRevenue) * monthlyRevenueShare
	ov.ConversionRate = ConversionRate(ov.TotalQuotes, ov.TotalChats)

	out := &Analytics{Overview: ov, RecentActivity: make([]ActivityView, 0, len(recent))}
	for _, a := range recent {
		out.RecentActivity = append(out.RecentActivity, ActivityView{
			ID:          a.ID,
			Type:        a.EntityType,
			Description: a.Description,
			Timestamp:   a.CreatedAt,
		})
	}
	return out, nil
}

// ConversionRate is round(quotes/chats × 100), or 0 without chats.
func ConversionRate(quotes, chats int) int {
	if chats <= 0 {
		return 0
	}
	return int(math.Round(float64(quotes) / float64(chats) * 100))
}
