package repository

import (
	"context"

	"hekumbi_chat/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) AppendActivity(ctx context.Context, a *entities.Activity) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO activities (id, entity_type, entity_id, action, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.EntityType, a.EntityID, a.Action, a.Description, a.Metadata, a.CreatedAt)
	return entities.Transient("append activity", err)
}

func (r *ActivityRepository) RecentActivities(ctx context.Context, limit int) ([]entities.Activity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, entity_type, entity_id, action, description, COALESCE(metadata, '{}'::jsonb), created_at
		FROM activities ORDER BY created_at DESC, seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, entities.Transient("recent activities", err)
	}
	defer rows.Close()

	out := []entities.Activity{}
	for rows.Next() {
		var a entities.Activity
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Action, &a.Description, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, entities.Transient("scan activity", err)
		}
		out = append(out, a)
	}
	return out, entities.Transient("recent activities", rows.Err())
}
