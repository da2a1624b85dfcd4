package usecases

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	"github.com/xuri/excelize/v2"
)

const NoDescription = "Sem descrição"

// Display names for the wizard's service ids.
var serviceTypeNames = map[string]string{
	"condominio": "Condomínio",
	"hospital":   "Hospital",
	"escola":     "Escola/Colégio",
	"empresa":    "Empresa/Escritório",
	"shopping":   "Shopping/Comercial",
	"igreja":     "Igreja/Templo",
}

func ServiceTypeName(id string) string {
	if name, ok := serviceTypeNames[normalizeID(id)]; ok {
		return name
	}
	return strings.TrimSpace(id)
}

type QuoteService struct {
	store   interfaces.RecordStore
	rec     recorder
	pricing *PricingCalculator
	alerter interfaces.Alerter
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewQuoteService(store interfaces.RecordStore, feed interfaces.ChangePublisher, pricing *PricingCalculator, alerter interfaces.Alerter, log logrus.FieldLogger) *QuoteService {
	return &QuoteService{
		store:   store,
		rec:     recorder{activities: store, feed: feed, log: log},
		pricing: pricing,
		alerter: alerter,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// QuoteRequest is the quote wizard submission.
type QuoteRequest struct {
	CustomerID   string  `json:"customer_id" validate:"omitempty,max=64"`
	ChatID       string  `json:"chat_id" validate:"omitempty,max=64"`
	Name         string  `json:"name" validate:"required,min=2,max=120,no_xss"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        string  `json:"phone" validate:"required,min=6,max=30"`
	Company      string  `json:"company" validate:"omitempty,max=120,no_xss"`
	ServiceType  string  `json:"service_type" validate:"required,max=60,no_xss"`
	PropertyType string  `json:"property_type" validate:"omitempty,max=60,no_xss"`
	Area         float64 `json:"area" validate:"gte=0,lte=1000000"`
	Frequency    string  `json:"frequency" validate:"required,oneof=diaria semanal quinzenal mensal eventual daily weekly biweekly monthly occasional"`
	Urgency      string  `json:"urgency" validate:"required,oneof=normal urgente emergencia urgent emergency"`
	Location     string  `json:"location" validate:"required,max=200,no_xss"`
	Description  string  `json:"description" validate:"max=2000,no_xss"`
}

type Estimate struct {
	Value               int64             `json:"estimatedValue"`
	Area                float64           `json:"area"`
	FrequencyMultiplier float64           `json:"frequencyMultiplier"`
	UrgencyMultiplier   float64           `json:"urgencyMultiplier"`
	Priority            entities.Priority `json:"priority"`
}

// Preview prices wizard input without saving it. A blank area counts as 100 m².
func (s *QuoteService) Preview(area float64, frequency, urgency string) Estimate {
	if area <= 0 {
		area = DefaultArea
	}
	return Estimate{
		Value:               s.pricing.Estimate(area, frequency, urgency),
		Area:                area,
		FrequencyMultiplier: FrequencyMultiplier(frequency),
		UrgencyMultiplier:   UrgencyMultiplier(urgency),
		Priority:            s.pricing.Priority(urgency),
	}
}

// SubmitQuote stores a wizard submission for the given or a new customer.
func (s *QuoteService) SubmitQuote(ctx context.Context, req QuoteRequest) (*entities.Quote, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Frequency = normalizeID(req.Frequency)
	req.Urgency = normalizeID(req.Urgency)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	customer, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	est := s.Preview(req.Area, req.Frequency, req.Urgency)
	q := &entities.Quote{
		ID:             uuid.NewString(),
		QuoteNumber:    s.pricing.QuoteNumber(now),
		CustomerID:     customer.ID,
		ChatID:         req.ChatID,
		ServiceType:    ServiceTypeName(req.ServiceType),
		PropertyType:   req.PropertyType,
		Area:           req.Area,
		Frequency:      normalizeID(req.Frequency),
		Urgency:        normalizeID(req.Urgency),
		Location:       strings.TrimSpace(req.Location),
		Description:    strings.TrimSpace(req.Description),
		EstimatedValue: est.Value,
		Status:         entities.QuotePending,
		Priority:       est.Priority,
		ValidUntil:     now.Add(entities.QuoteValidity),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateQuote(ctx, q); err != nil {
		return nil, err
	}

	s.rec.activity(ctx, entities.EntityQuote, q.ID, "created", "Novo orçamento solicitado por "+customer.Name,
		map[string]interface{}{
			"service_type":    req.ServiceType,
			"estimated_value": q.EstimatedValue,
			"urgency":         q.Urgency,
		}, now)
	s.publishQuote(ctx, entities.EventQuoteInsert, q, now)
	if s.alerter != nil {
		s.alerter.Alert(ctx, fmt.Sprintf("📋 Novo orçamento %s\n%s - %s\nValor estimado: %d AOA (%s)",
			q.QuoteNumber, customer.Name, q.ServiceType, q.EstimatedValue, q.Priority))
	}
	s.log.WithFields(logrus.Fields{"quote_id": q.ID, "quote_number": q.QuoteNumber, "value": q.EstimatedValue}).Info("Quote submitted")
	return q, nil
}

func (s *QuoteService) resolveCustomer(ctx context.Context, req QuoteRequest) (*entities.Customer, error) {
	if req.CustomerID != "" {
		c, err := s.store.GetCustomer(ctx, req.CustomerID)
		if err == nil {
			name, email, phone := req.Name, req.Email, req.Phone
			return s.store.UpdateCustomer(ctx, c.ID, entities.ContactPatch{Name: &name, Email: &email, Phone: &phone}, s.now())
		}
		if !entities.IsNotFound(err) {
			return nil, err
		}
	}
	now := s.now()
	c := &entities.Customer{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	s.rec.activity(ctx, entities.EntityCustomer, c.ID, "created", "Novo cliente: "+c.Name, nil, now)
	return c, nil
}

// QuoteView is the admin list shape of a quote.
type QuoteView struct {
	ID            string               `json:"id"`
	QuoteNumber   string               `json:"quoteNumber"`
	CustomerID    string               `json:"customerId"`
	CustomerName  string               `json:"customerName"`
	CustomerEmail string               `json:"customerEmail"`
	CustomerPhone string               `json:"customerPhone"`
	ServiceType   string               `json:"serviceType"`
	PropertyType  string               `json:"propertyType"`
	Area          float64              `json:"area"`
	Frequency     string               `json:"frequency"`
	Urgency       string               `json:"urgency"`
	Location      string               `json:"location"`
	Description   string               `json:"description"`
	Status        entities.QuoteStatus `json:"status"`
	Priority      entities.Priority    `json:"priority"`
	Value         int64                `json:"value"`
	ValidUntil    time.Time            `json:"validUntil"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

type QuoteStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Sent     int `json:"sent"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Expired  int `json:"expired"`
}

type QuoteList struct {
	Quotes []QuoteView `json:"quotes"`
	Total  int         `json:"total"`
	Stats  QuoteStats  `json:"stats"`
	Page   *PageInfo   `json:"page,omitempty"`
}

func NewQuoteView(r entities.QuoteRow) QuoteView {
	desc := r.Description
	if strings.TrimSpace(desc) == "" {
		desc = NoDescription
	}
	return QuoteView{
		ID:            r.ID,
		QuoteNumber:   r.QuoteNumber,
		CustomerID:    r.CustomerID,
		CustomerName:  orNA(r.CustomerName),
		CustomerEmail: orNA(r.CustomerEmail),
		CustomerPhone: orNA(r.CustomerPhone),
		ServiceType:   r.ServiceType,
		PropertyType:  r.PropertyType,
		Area:          r.Area,
		Frequency:     r.Frequency,
		Urgency:       r.Urgency,
		Location:      r.Location,
		Description:   desc,
		Status:        r.Status,
		Priority:      r.Priority,
		Value:         r.EstimatedValue,
		ValidUntil:    r.ValidUntil,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *QuoteService) filtered(ctx context.Context, filter entities.ListFilter) ([]entities.QuoteRow, QuoteStats, error) {
	rows, err := s.store.ListQuotes(ctx)
	if err != nil {
		return nil, QuoteStats{}, err
	}
	var stats QuoteStats
	var matched []entities.QuoteRow
	for _, r := range rows {
		if !filter.MatchesQuote(r) {
			continue
		}
		matched = append(matched, r)
		stats.Total++
		switch r.Status {
		case entities.QuotePending:
			stats.Pending++
		case entities.QuoteSent:
			stats.Sent++
		case entities.QuoteApproved:
			stats.Approved++
		case entities.QuoteRejected:
			stats.Rejected++
		case entities.QuoteExpired:
			stats.Expired++
		}
	}
	return matched, stats, nil
}

// ListQuotes returns the quotes matching filter, newest first.
func (s *QuoteService) ListQuotes(ctx context.Context, filter entities.ListFilter) (*QuoteList, error) {
	matched, stats, err := s.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}
	start, end, page := paginate(filter, len(matched))
	out := &QuoteList{Quotes: []QuoteView{}, Total: len(matched), Stats: stats, Page: page}
	for _, r := range matched[start:end] {
		out.Quotes = append(out.Quotes, NewQuoteView(r))
	}
	return out, nil
}

// UpdateQuote applies the non-nil fields of patch. Status only moves forward.
func (s *QuoteService) UpdateQuote(ctx context.Context, id string, patch entities.QuotePatch) (*entities.Quote, error) {
	if strings.TrimSpace(id) == "" {
		return nil, entities.Invalid("id", "is required")
	}
	if patch.Status == nil && patch.Priority == nil && patch.EstimatedValue == nil {
		return nil, entities.Invalid("", "status, priority or estimated_value is required")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, entities.Invalid("status", "must be one of: pending sent approved rejected expired")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, entities.Invalid("priority", "must be one of: low medium high")
	}
	if patch.EstimatedValue != nil && *patch.EstimatedValue < 0 {
		return nil, entities.Invalid("estimated_value", "must not be negative")
	}

	meta := map[string]interface{}{}
	var changes []string
	if patch.Status != nil {
		meta["status"] = string(*patch.Status)
		changes = append(changes, change("status alterado", *patch.Status))
	}
	if patch.Priority != nil {
		meta["priority"] = string(*patch.Priority)
		changes = append(changes, change("prioridade alterada", *patch.Priority))
	}
	if patch.EstimatedValue != nil {
		meta["estimated_value"] = *patch.EstimatedValue
		changes = append(changes, change("valor estimado alterado", *patch.EstimatedValue))
	}
	now := s.now()

	q, err := s.store.UpdateQuote(ctx, id, patch, now)
	if err != nil {
		return nil, err
	}
	s.rec.activity(ctx, entities.EntityQuote, q.ID, "updated", describeChanges("Orçamento", changes), meta, now)
	s.publishQuote(ctx, entities.EventQuoteUpdate, q, now)
	return q, nil
}

func (s *QuoteService) publishQuote(ctx context.Context, typ entities.EventType, q *entities.Quote, at time.Time) {
	snapshot := *q
	s.rec.publish(ctx, typ, at, []string{entities.TopicQuotes}, func(ev *entities.ChangeEvent) {
		ev.Quote = &snapshot
	})
}

const exportSheet = "Orçamentos"

var exportHeaders = []string{
	"Número", "Cliente", "Email", "Telefone", "Serviço", "Imóvel", "Área (m²)",
	"Frequência", "Urgência", "Localização", "Estado", "Prioridade", "Valor (AOA)",
	"Válido até", "Criado em",
}

// ExportXLSX writes the quotes matching filter as a spreadsheet.
func (s *QuoteService) ExportXLSX(ctx context.Context, filter entities.ListFilter, w io.Writer) (int, error) {
	matched, _, err := s.filtered(ctx, filter)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()
	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return 0, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
	}
	for r, row := range matched {
		v := NewQuoteView(row)
		values := []interface{}{
			v.QuoteNumber, v.CustomerName, v.CustomerEmail, v.CustomerPhone, v.ServiceType, v.PropertyType, v.Area,
			v.Frequency, v.Urgency, v.Location, string(v.Status), string(v.Priority), v.Value,
			v.ValidUntil.Format("02/01/2006"), v.CreatedAt.Format("02/01/2006 15:04"),
		}
		for c, value := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(exportSheet, cell, value)
		}
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("write spreadsheet: %w", err)
	}
	return len(matched), nil
}

// QRCode renders the quote reference as a PNG the customer can show on site.
func (s *QuoteService) QRCode(ctx context.Context, id string) ([]byte, error) {
	q, err := s.store.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(fmt.Sprintf("HEKUMBI %s %s", q.QuoteNumber, q.ID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
