package models

import (
	"time"

	"github.com/google/uuid"
)

// Position is a point on the activity grid, each coordinate in [0,1].
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamp returns the position with both coordinates forced into [0,1].
// The server never trusts client-side clamping.
func (p Position) Clamp() Position {
	return Position{X: clamp01(p.X), Y: clamp01(p.Y)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Rating is one user's 2D position for one slot of one activity.
// At most one rating exists per (activity, user, slot); a new submission
// replaces the prior one.
type Rating struct {
	ID         uuid.UUID `json:"id"`
	ActivityID uuid.UUID `json:"activityId"`
	UserID     uuid.UUID `json:"userId"`
	SlotNumber int       `json:"slotNumber"`
	Position   Position  `json:"position"`
	ObjectName string    `json:"objectName"`
	Timestamp  time.Time `json:"timestamp"`
}
