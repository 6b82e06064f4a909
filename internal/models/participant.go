package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a live connection to an activity room. Participants are
// not persisted; identity is unique per user within a room.
type Participant struct {
	ID       uuid.UUID `json:"id"` // equals the user id; the room dedupes by it
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}
