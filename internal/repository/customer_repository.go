package repository

import (
	"context"
	"errors"
	"time"

	"hekumbi_chat/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CustomerRepository struct {
	db *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) CreateCustomer(ctx context.Context, c *entities.Customer) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO customers (id, name, email, phone, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		c.ID, c.Name, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt)
	return entities.Transient("create customer", err)
}

func (r *CustomerRepository) GetCustomer(ctx context.Context, id string) (*entities.Customer, error) {
	var c entities.Customer
	err := r.db.QueryRow(ctx,
		"SELECT id, name, email, phone, created_at, updated_at FROM customers WHERE id = $1",
		id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.NotFound(entities.EntityCustomer, id)
	}
	if err != nil {
		return nil, entities.Transient("get customer", err)
	}
	return &c, nil
}

// UpdateCustomer applies the non-nil fields of patch.
func (r *CustomerRepository) UpdateCustomer(ctx context.Context, id string, patch entities.ContactPatch, at time.Time) (*entities.Customer, error) {
	var c entities.Customer
	err := r.db.QueryRow(ctx, `
		UPDATE customers SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			updated_at = $5
		WHERE id = $1
		RETURNING id, name, email, phone, created_at, updated_at`,
		id, patch.Name, patch.Email, patch.Phone, at,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.NotFound(entities.EntityCustomer, id)
	}
	if err != nil {
		return nil, entities.Transient("update customer", err)
	}
	return &c, nil
}
