package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

// ErrNotFound is returned when no activity matches the lookup.
var ErrNotFound = errors.New("activity not found")

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation, e.g. a duplicate url_name.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const activityColumns = `id, url_name, title, created_by,
	x_axis_label, x_axis_min, x_axis_max, y_axis_label, y_axis_min, y_axis_max,
	prompt_question, COALESCE(prompt_question_2, ''), comment_prompt,
	max_entries, status, is_public, created_at, updated_at`

// Repository handles activity persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an activities repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new activity in draft status.
func (r *Repository) Create(ctx context.Context, a *models.Activity) error {
	const query = `INSERT INTO activities
		(id, url_name, title, created_by,
		 x_axis_label, x_axis_min, x_axis_max, y_axis_label, y_axis_min, y_axis_max,
		 prompt_question, prompt_question_2, comment_prompt, max_entries, status, is_public)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11,''), $12, $13, 'draft', $14)
		RETURNING id, status, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		a.URLName, a.Title, a.CreatedBy,
		a.XAxis.Label, a.XAxis.Min, a.XAxis.Max, a.YAxis.Label, a.YAxis.Min, a.YAxis.Max,
		a.PromptQuestion, a.PromptQuestion2, a.CommentPrompt, a.MaxEntries, a.IsPublic).
		Scan(&a.ID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

// GetByID returns an activity by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE id = $1`, activityColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByURLName returns an activity by its URL slug.
func (r *Repository) GetByURLName(ctx context.Context, urlName string) (*models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities WHERE url_name = $1`, activityColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, urlName))
}

// List returns public activities plus those owned by userID, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activities
		WHERE is_public OR created_by = $1
		ORDER BY created_at DESC`, activityColumns)
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Activity
	for rows.Next() {
		a, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Update rewrites the editable fields of an activity.
func (r *Repository) Update(ctx context.Context, a *models.Activity) error {
	const query = `UPDATE activities SET
		url_name = $2, title = $3,
		x_axis_label = $4, x_axis_min = $5, x_axis_max = $6,
		y_axis_label = $7, y_axis_min = $8, y_axis_max = $9,
		prompt_question = $10, prompt_question_2 = NULLIF($11,''), comment_prompt = $12,
		max_entries = $13, is_public = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query, a.ID,
		a.URLName, a.Title,
		a.XAxis.Label, a.XAxis.Min, a.XAxis.Max,
		a.YAxis.Label, a.YAxis.Min, a.YAxis.Max,
		a.PromptQuestion, a.PromptQuestion2, a.CommentPrompt,
		a.MaxEntries, a.IsPublic).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// UpdateStatus moves an activity through its lifecycle
// (draft -> active -> completed).
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ActivityStatus) error {
	const query = `UPDATE activities SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an activity and, via cascades, its ratings and comments.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*models.Activity, error) {
	var a models.Activity
	var status string
	err := row.Scan(&a.ID, &a.URLName, &a.Title, &a.CreatedBy,
		&a.XAxis.Label, &a.XAxis.Min, &a.XAxis.Max,
		&a.YAxis.Label, &a.YAxis.Min, &a.YAxis.Max,
		&a.PromptQuestion, &a.PromptQuestion2, &a.CommentPrompt,
		&a.MaxEntries, &status, &a.IsPublic, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = models.ActivityStatus(status)
	return &a, nil
}
