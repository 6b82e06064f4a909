package ratings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

// ErrNotFound is returned when no rating matches the lookup.
var ErrNotFound = errors.New("rating not found")

// Repository handles rating persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a ratings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores a rating keyed by (activity, user, slot). A resubmission
// replaces the prior position rather than appending; last write wins.
func (r *Repository) Upsert(ctx context.Context, rt *models.Rating) error {
	const query = `INSERT INTO ratings (id, activity_id, user_id, slot_number, x, y, object_name)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		ON CONFLICT (activity_id, user_id, slot_number)
		DO UPDATE SET x = EXCLUDED.x, y = EXCLUDED.y, object_name = EXCLUDED.object_name, updated_at = NOW()
		RETURNING id, updated_at`
	return r.pool.QueryRow(ctx, query,
		rt.ActivityID, rt.UserID, rt.SlotNumber, rt.Position.X, rt.Position.Y, rt.ObjectName).
		Scan(&rt.ID, &rt.Timestamp)
}

// GetByUserSlot returns the rating for one (activity, user, slot) key.
func (r *Repository) GetByUserSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) (*models.Rating, error) {
	const query = `SELECT id, activity_id, user_id, slot_number, x, y, object_name, updated_at
		FROM ratings WHERE activity_id = $1 AND user_id = $2 AND slot_number = $3`
	var rt models.Rating
	err := r.pool.QueryRow(ctx, query, activityID, userID, slot).
		Scan(&rt.ID, &rt.ActivityID, &rt.UserID, &rt.SlotNumber,
			&rt.Position.X, &rt.Position.Y, &rt.ObjectName, &rt.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// ListByActivity returns all ratings for an activity.
func (r *Repository) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]models.Rating, error) {
	const query = `SELECT id, activity_id, user_id, slot_number, x, y, object_name, updated_at
		FROM ratings WHERE activity_id = $1 ORDER BY updated_at`
	rows, err := r.pool.Query(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Rating
	for rows.Next() {
		var rt models.Rating
		if err := rows.Scan(&rt.ID, &rt.ActivityID, &rt.UserID, &rt.SlotNumber,
			&rt.Position.X, &rt.Position.Y, &rt.ObjectName, &rt.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, rt)
	}
	return list, rows.Err()
}

// DeleteSlot removes the rating for one (activity, user, slot) key.
// Missing rows are not an error: clearing an empty slot is a no-op.
func (r *Repository) DeleteSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM ratings WHERE activity_id = $1 AND user_id = $2 AND slot_number = $3`,
		activityID, userID, slot)
	return err
}
