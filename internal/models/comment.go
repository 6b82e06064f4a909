package models

import (
	"time"

	"github.com/google/uuid"
)

// Validation limits for user-supplied text.
const (
	MaxCommentLen    = 500
	MaxObjectNameLen = 25
	MaxUsernameLen   = 50
)

// Quadrant labels derived from a rating's position on the grid.
// Recomputed server-side whenever the matching rating moves.
const (
	QuadrantTopLeft     = "top_left"
	QuadrantTopRight    = "top_right"
	QuadrantBottomLeft  = "bottom_left"
	QuadrantBottomRight = "bottom_right"
)

// QuadrantFor maps a grid position to its quadrant label. The midpoint
// (0.5, 0.5) belongs to the top-right quadrant.
func QuadrantFor(p Position) string {
	right := p.X >= 0.5
	top := p.Y >= 0.5
	switch {
	case top && right:
		return QuadrantTopRight
	case top:
		return QuadrantTopLeft
	case right:
		return QuadrantBottomRight
	default:
		return QuadrantBottomLeft
	}
}

// Vote is one user's endorsement of a comment. A user holds at most one
// vote per comment, and never on their own comment.
type Vote struct {
	UserID    uuid.UUID `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// Comment is one user's free-text response for one slot of one activity.
// At most one comment exists per (activity, user, slot); resubmission
// replaces the text in place (same comment id).
type Comment struct {
	ID         uuid.UUID `json:"id"`
	ActivityID uuid.UUID `json:"activityId"`
	UserID     uuid.UUID `json:"userId"`
	SlotNumber int       `json:"slotNumber"`
	Text       string    `json:"text"`
	ObjectName string    `json:"objectName"`
	Quadrant   string    `json:"quadrant,omitempty"`
	Votes      []Vote    `json:"votes"`
	VoteCount  int       `json:"voteCount"`
	Timestamp  time.Time `json:"timestamp"`
}
