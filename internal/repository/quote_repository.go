package repository

import (
	"context"
	"errors"
	"time"

	"hekumbi_chat/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const quoteColumns = `q.id, q.quote_number, q.customer_id, q.chat_id, q.service_type, q.property_type,
	q.area, q.frequency, q.urgency, q.location, q.description, q.estimated_value,
	q.status, q.priority, q.valid_until, q.created_at, q.updated_at`

type QuoteRepository struct {
	db *pgxpool.Pool
}

func NewQuoteRepository(db *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func scanQuote(row pgx.Row, extra ...any) (*entities.Quote, error) {
	var q entities.Quote
	dest := []any{&q.ID, &q.QuoteNumber, &q.CustomerID, &q.ChatID, &q.ServiceType, &q.PropertyType,
		&q.Area, &q.Frequency, &q.Urgency, &q.Location, &q.Description, &q.EstimatedValue,
		&q.Status, &q.Priority, &q.ValidUntil, &q.CreatedAt, &q.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuoteRepository) CreateQuote(ctx context.Context, q *entities.Quote) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quotes (id, quote_number, customer_id, chat_id, service_type, property_type,
			area, frequency, urgency, location, description, estimated_value,
			status, priority, valid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		q.ID, q.QuoteNumber, q.CustomerID, q.ChatID, q.ServiceType, q.PropertyType,
		q.Area, q.Frequency, q.Urgency, q.Location, q.Description, q.EstimatedValue,
		q.Status, q.Priority, q.ValidUntil, q.CreatedAt, q.UpdatedAt)
	return entities.Transient("create quote", err)
}

func (r *QuoteRepository) GetQuote(ctx context.Context, id string) (*entities.Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, "SELECT "+quoteColumns+" FROM quotes q WHERE q.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.NotFound(entities.EntityQuote, id)
	}
	if err != nil {
		return nil, entities.Transient("get quote", err)
	}
	return q, nil
}

func (r *QuoteRepository) ListQuotes(ctx context.Context) ([]entities.QuoteRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+quoteColumns+`, COALESCE(cu.name, ''), COALESCE(cu.email, ''), COALESCE(cu.phone, '')
		FROM quotes q
		LEFT JOIN customers cu ON cu.id = q.customer_id
		ORDER BY q.created_at DESC`)
	if err != nil {
		return nil, entities.Transient("list quotes", err)
	}
	defer rows.Close()

	var out []entities.QuoteRow
	for rows.Next() {
		var row entities.QuoteRow
		q, err := scanQuote(rows, &row.CustomerName, &row.CustomerEmail, &row.CustomerPhone)
		if err != nil {
			return nil, entities.Transient("scan quote", err)
		}
		row.Quote = *q
		out = append(out, row)
	}
	return out, entities.Transient("list quotes", rows.Err())
}

func (r *QuoteRepository) UpdateQuote(ctx context.Context, id string, patch entities.QuotePatch, at time.Time) (*entities.Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `
		UPDATE quotes q SET
			status = COALESCE($2, q.status),
			priority = COALESCE($3, q.priority),
			estimated_value = COALESCE($4, q.estimated_value),
			updated_at = $5
		WHERE q.id = $1 AND ($6::text[] IS NULL OR q.status = ANY($6::text[]))
		RETURNING `+quoteColumns,
		id, optionalText(patch.Status), optionalText(patch.Priority), patch.EstimatedValue, at, sourceStatuses(patch.Status)))
	if errors.Is(err, pgx.ErrNoRows) {
		cur, getErr := r.GetQuote(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if patch.Status == nil {
			return nil, entities.NotFound(entities.EntityQuote, id)
		}
		return nil, errQuoteTransition(cur.Status, *patch.Status)
	}
	if err != nil {
		return nil, entities.Transient("update quote", err)
	}
	return q, nil
}
