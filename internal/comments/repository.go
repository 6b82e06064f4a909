package comments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

var (
	// ErrNotFound is returned when no comment matches the lookup.
	ErrNotFound = errors.New("comment not found")
	// ErrSelfVote is returned when a user votes on their own comment.
	ErrSelfVote = errors.New("cannot vote on your own comment")
)

// Repository handles comment and vote persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a comments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert stores a comment keyed by (activity, user, slot) and reports whether
// a new row was inserted (as opposed to an edit of the existing one). The
// comment id is stable across edits, so id-keyed merges stay valid.
func (r *Repository) Upsert(ctx context.Context, c *models.Comment) (created bool, err error) {
	const query = `INSERT INTO comments (id, activity_id, user_id, slot_number, body, object_name, quadrant)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6,''))
		ON CONFLICT (activity_id, user_id, slot_number)
		DO UPDATE SET body = EXCLUDED.body, object_name = EXCLUDED.object_name,
			quadrant = EXCLUDED.quadrant, updated_at = NOW()
		RETURNING id, updated_at, (xmax = 0) AS inserted`
	err = r.pool.QueryRow(ctx, query,
		c.ActivityID, c.UserID, c.SlotNumber, c.Text, c.ObjectName, c.Quadrant).
		Scan(&c.ID, &c.Timestamp, &created)
	if err != nil {
		return false, err
	}
	if c.Votes == nil {
		c.Votes = []models.Vote{}
	}
	if !created {
		// Edits keep their votes; reload them for the canonical broadcast.
		votes, err := r.loadVotes(ctx, r.pool, c.ID)
		if err != nil {
			return false, err
		}
		c.Votes = votes
		c.VoteCount = len(votes)
	}
	return created, nil
}

// GetByID returns a comment with its votes.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	c, err := r.scanOne(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	votes, err := r.loadVotes(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	c.Votes = votes
	c.VoteCount = len(votes)
	return c, nil
}

// GetByUserSlot returns the comment for one (activity, user, slot) key,
// without votes loaded.
func (r *Repository) GetByUserSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) (*models.Comment, error) {
	const query = `SELECT id, activity_id, user_id, slot_number, body, object_name, COALESCE(quadrant,''), updated_at
		FROM comments WHERE activity_id = $1 AND user_id = $2 AND slot_number = $3`
	var c models.Comment
	err := r.pool.QueryRow(ctx, query, activityID, userID, slot).
		Scan(&c.ID, &c.ActivityID, &c.UserID, &c.SlotNumber, &c.Text, &c.ObjectName, &c.Quadrant, &c.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Votes = []models.Vote{}
	return &c, nil
}

// UpdateQuadrant rewrites the server-derived quadrant of a comment and
// returns the canonical comment with votes for broadcast.
func (r *Repository) UpdateQuadrant(ctx context.Context, id uuid.UUID, quadrant string) (*models.Comment, error) {
	const query = `UPDATE comments SET quadrant = NULLIF($2,''), updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, quadrant)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// ListByActivity returns all comments for an activity with votes attached.
func (r *Repository) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]models.Comment, error) {
	const query = `SELECT id, activity_id, user_id, slot_number, body, object_name, COALESCE(quadrant,''), updated_at
		FROM comments WHERE activity_id = $1 ORDER BY updated_at`
	rows, err := r.pool.Query(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Comment
	byID := make(map[uuid.UUID]int)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ActivityID, &c.UserID, &c.SlotNumber,
			&c.Text, &c.ObjectName, &c.Quadrant, &c.Timestamp); err != nil {
			return nil, err
		}
		c.Votes = []models.Vote{}
		byID[c.ID] = len(list)
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	const votesQuery = `SELECT cv.comment_id, cv.user_id, cv.username, cv.voted_at
		FROM comment_votes cv
		JOIN comments c ON c.id = cv.comment_id
		WHERE c.activity_id = $1
		ORDER BY cv.voted_at`
	voteRows, err := r.pool.Query(ctx, votesQuery, activityID)
	if err != nil {
		return nil, err
	}
	defer voteRows.Close()
	for voteRows.Next() {
		var commentID uuid.UUID
		var v models.Vote
		if err := voteRows.Scan(&commentID, &v.UserID, &v.Username, &v.Timestamp); err != nil {
			return nil, err
		}
		if i, ok := byID[commentID]; ok {
			list[i].Votes = append(list[i].Votes, v)
			list[i].VoteCount++
		}
	}
	return list, voteRows.Err()
}

// ToggleVote flips voterID's vote on a comment inside one transaction:
// voting twice removes the prior vote. Self-votes are rejected. The returned
// comment carries the recomputed vote list, so the derived count always
// equals the number of distinct (comment, voter) rows even under concurrent
// voters.
func (r *Repository) ToggleVote(ctx context.Context, commentID, voterID uuid.UUID, username string) (*models.Comment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin vote tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := r.scanOne(ctx, tx, commentID)
	if err != nil {
		return nil, err
	}
	if c.UserID == voterID {
		return nil, ErrSelfVote
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO comment_votes (comment_id, user_id, username) VALUES ($1, $2, $3)
		 ON CONFLICT (comment_id, user_id) DO NOTHING`,
		commentID, voterID, username)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// Already voted: the toggle removes it.
		if _, err := tx.Exec(ctx,
			`DELETE FROM comment_votes WHERE comment_id = $1 AND user_id = $2`,
			commentID, voterID); err != nil {
			return nil, err
		}
	}

	votes, err := r.loadVotes(ctx, tx, commentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit vote tx: %w", err)
	}
	c.Votes = votes
	c.VoteCount = len(votes)
	return c, nil
}

// DeleteSlot removes the comment (and cascaded votes) for one
// (activity, user, slot) key.
func (r *Repository) DeleteSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM comments WHERE activity_id = $1 AND user_id = $2 AND slot_number = $3`,
		activityID, userID, slot)
	return err
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) scanOne(ctx context.Context, q querier, id uuid.UUID) (*models.Comment, error) {
	const query = `SELECT id, activity_id, user_id, slot_number, body, object_name, COALESCE(quadrant,''), updated_at
		FROM comments WHERE id = $1`
	var c models.Comment
	err := q.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.ActivityID, &c.UserID, &c.SlotNumber, &c.Text, &c.ObjectName, &c.Quadrant, &c.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) loadVotes(ctx context.Context, q querier, commentID uuid.UUID) ([]models.Vote, error) {
	rows, err := q.Query(ctx,
		`SELECT user_id, username, voted_at FROM comment_votes WHERE comment_id = $1 ORDER BY voted_at`,
		commentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.UserID, &v.Username, &v.Timestamp); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
