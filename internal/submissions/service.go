// Package submissions is the single write path for ratings, comments, and
// votes. Both the REST handlers and the WebSocket event router call into it,
// so either transport produces the same canonical record and the same room
// broadcast.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/comments"
	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/realtime"
	"github.com/markothell/holoscopic-app-sub000/internal/state"
)

var (
	// ErrActivityClosed rejects writes to non-active activities.
	ErrActivityClosed = errors.New("activity is not accepting submissions")
	// ErrInvalidSlot rejects slots outside the activity's entry budget.
	ErrInvalidSlot = errors.New("slot number out of range")
	// ErrTextTooLong rejects oversized comment text.
	ErrTextTooLong = fmt.Errorf("comment exceeds %d characters", models.MaxCommentLen)
	// ErrEmptyText rejects blank comments.
	ErrEmptyText = errors.New("comment text is required")
	// ErrObjectNameTooLong rejects oversized display labels.
	ErrObjectNameTooLong = fmt.Errorf("object name exceeds %d characters", models.MaxObjectNameLen)
)

// RatingRepo is the slice of the ratings repository the service needs.
type RatingRepo interface {
	Upsert(ctx context.Context, rt *models.Rating) error
	GetByUserSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) (*models.Rating, error)
	DeleteSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) error
}

// CommentRepo is the slice of the comments repository the service needs.
type CommentRepo interface {
	Upsert(ctx context.Context, c *models.Comment) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	GetByUserSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) (*models.Comment, error)
	UpdateQuadrant(ctx context.Context, id uuid.UUID, quadrant string) (*models.Comment, error)
	ToggleVote(ctx context.Context, commentID, voterID uuid.UUID, username string) (*models.Comment, error)
	DeleteSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) error
}

// ActivityRepo is the slice of the activities repository the service needs.
type ActivityRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Activity, error)
}

// Service validates submissions, persists canonical records, and fans the
// result out to the activity room.
type Service struct {
	activities ActivityRepo
	ratings    RatingRepo
	comments   CommentRepo
	hub        *realtime.Hub
	logger     *zap.Logger
}

// NewService creates the submission service.
func NewService(activityRepo ActivityRepo, ratingRepo RatingRepo, commentRepo CommentRepo, hub *realtime.Hub, logger *zap.Logger) *Service {
	return &Service{
		activities: activityRepo,
		ratings:    ratingRepo,
		comments:   commentRepo,
		hub:        hub,
		logger:     logger,
	}
}

// guard loads the activity and enforces the lifecycle and slot invariants
// shared by every write path.
func (s *Service) guard(ctx context.Context, activityID uuid.UUID, slot int) (*models.Activity, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !activity.AcceptsSubmissions() {
		return nil, ErrActivityClosed
	}
	if !activity.SlotAllowed(slot) {
		return nil, ErrInvalidSlot
	}
	return activity, nil
}

// SubmitRating upserts a rating keyed by (user, slot), broadcasts the
// canonical rating_added to the whole room (sender included), and recomputes
// the quadrant of the slot's comment, broadcasting comment_updated when it
// moved.
func (s *Service) SubmitRating(ctx context.Context, username string, p realtime.SubmitRatingPayload) error {
	if utf8.RuneCountInString(p.ObjectName) > models.MaxObjectNameLen {
		return ErrObjectNameTooLong
	}
	slot := normalizeSlot(p.SlotNumber)
	if _, err := s.guard(ctx, p.ActivityID, slot); err != nil {
		return err
	}

	rating := &models.Rating{
		ActivityID: p.ActivityID,
		UserID:     p.UserID,
		SlotNumber: slot,
		Position:   p.Position.Clamp(),
		ObjectName: strings.TrimSpace(p.ObjectName),
	}
	if err := s.ratings.Upsert(ctx, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	s.hub.PublishToActivity(p.ActivityID, state.EventRatingAdded, state.RatingAdded{Rating: *rating})

	s.recomputeQuadrant(ctx, rating)
	return nil
}

// recomputeQuadrant aligns the slot's comment with the rating's new
// position. A changed quadrant is broadcast as comment_updated: same comment
// id, server-recomputed metadata, no user resubmission.
func (s *Service) recomputeQuadrant(ctx context.Context, rating *models.Rating) {
	comment, err := s.comments.GetByUserSlot(ctx, rating.ActivityID, rating.UserID, rating.SlotNumber)
	if err != nil {
		if !errors.Is(err, comments.ErrNotFound) {
			s.logger.Warn("quadrant lookup failed", zap.Error(err))
		}
		return
	}
	quadrant := models.QuadrantFor(rating.Position)
	if comment.Quadrant == quadrant {
		return
	}
	updated, err := s.comments.UpdateQuadrant(ctx, comment.ID, quadrant)
	if err != nil {
		s.logger.Warn("quadrant update failed", zap.Error(err))
		return
	}
	s.hub.PublishToActivity(rating.ActivityID, state.EventCommentUpdated, state.CommentUpdated{Comment: *updated})
}

// SubmitComment upserts a comment keyed by (user, slot) and broadcasts
// comment_added on first insert or comment_updated on an edit.
func (s *Service) SubmitComment(ctx context.Context, username string, p realtime.SubmitCommentPayload) (err error) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return ErrEmptyText
	}
	// Limits are in characters, matching the DB char_length checks; byte
	// length would reject valid multibyte text.
	if utf8.RuneCountInString(text) > models.MaxCommentLen {
		return ErrTextTooLong
	}
	if utf8.RuneCountInString(p.ObjectName) > models.MaxObjectNameLen {
		return ErrObjectNameTooLong
	}
	slot := normalizeSlot(p.SlotNumber)
	if _, err := s.guard(ctx, p.ActivityID, slot); err != nil {
		return err
	}

	comment := &models.Comment{
		ActivityID: p.ActivityID,
		UserID:     p.UserID,
		SlotNumber: slot,
		Text:       text,
		ObjectName: strings.TrimSpace(p.ObjectName),
	}
	if rating, err := s.ratings.GetByUserSlot(ctx, p.ActivityID, p.UserID, slot); err == nil {
		comment.Quadrant = models.QuadrantFor(rating.Position)
	}

	created, err := s.comments.Upsert(ctx, comment)
	if err != nil {
		return fmt.Errorf("upsert comment: %w", err)
	}
	event := state.EventCommentUpdated
	var payload interface{} = state.CommentUpdated{Comment: *comment}
	if created {
		event = state.EventCommentAdded
		payload = state.CommentAdded{Comment: *comment}
	}
	s.hub.PublishToActivity(p.ActivityID, event, payload)
	return nil
}

// VoteComment toggles the voter's vote on a comment and fans out
// comment_voted with the recomputed vote list.
func (s *Service) VoteComment(ctx context.Context, activityID, commentID, voterID uuid.UUID, username string) (*models.Comment, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !activity.AcceptsSubmissions() {
		return nil, ErrActivityClosed
	}
	comment, err := s.comments.ToggleVote(ctx, commentID, voterID, username)
	if err != nil {
		return nil, err
	}
	if comment.ActivityID != activityID {
		return nil, comments.ErrNotFound
	}
	s.hub.PublishToActivity(activityID, state.EventCommentVoted, state.CommentVoted{Comment: *comment})
	return comment, nil
}

// ClearSlot withdraws a user's rating and comment for one slot and tells the
// room to drop them.
func (s *Service) ClearSlot(ctx context.Context, activityID, userID uuid.UUID, slot int) error {
	if _, err := s.guard(ctx, activityID, slot); err != nil {
		return err
	}
	if err := s.ratings.DeleteSlot(ctx, activityID, userID, slot); err != nil {
		return fmt.Errorf("clear rating: %w", err)
	}
	if err := s.comments.DeleteSlot(ctx, activityID, userID, slot); err != nil {
		return fmt.Errorf("clear comment: %w", err)
	}
	s.hub.PublishToActivity(activityID, state.EventSlotCleared,
		state.SlotCleared{UserID: userID, SlotNumber: slot})
	return nil
}

// normalizeSlot defaults a missing slot number to the first slot.
func normalizeSlot(slot int) int {
	if slot < 1 {
		return 1
	}
	return slot
}
