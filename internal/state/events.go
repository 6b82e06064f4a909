// Package state holds the shared activity snapshot and the merge reducer
// that folds broadcast events into it. It is independent of any transport
// or UI so the same logic serves the reference client and the tests.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

// Wire event names, server to client.
const (
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventRatingAdded       = "rating_added"
	EventCommentAdded      = "comment_added"
	EventCommentUpdated    = "comment_updated"
	EventCommentVoted      = "comment_voted"
	EventSlotCleared       = "slot_cleared"
)

// Event is one inbound broadcast event. Exactly one variant exists per wire
// event name, each carrying its own typed payload.
type Event interface {
	EventName() string
}

// ParticipantJoined announces a new (or reconnected) room member.
type ParticipantJoined struct {
	Participant models.Participant `json:"participant"`
}

// ParticipantLeft announces a member leaving the room.
type ParticipantLeft struct {
	ParticipantID uuid.UUID `json:"participantId"`
}

// RatingAdded carries the canonical rating after an upsert, echoed to the
// sender as well so optimistic state converges on the server's copy.
type RatingAdded struct {
	Rating models.Rating `json:"rating"`
}

// CommentAdded carries a new or replaced comment for a (user, slot) key.
type CommentAdded struct {
	Comment models.Comment `json:"comment"`
}

// CommentUpdated carries a comment whose server-side metadata changed
// (e.g. quadrant recompute) without the user resubmitting.
type CommentUpdated struct {
	Comment models.Comment `json:"comment"`
}

// CommentVoted carries a comment with recomputed votes after a vote toggle.
type CommentVoted struct {
	Comment models.Comment `json:"comment"`
}

// SlotCleared announces that a user withdrew a slot's rating and comment.
type SlotCleared struct {
	UserID     uuid.UUID `json:"userId"`
	SlotNumber int       `json:"slotNumber"`
}

func (ParticipantJoined) EventName() string { return EventParticipantJoined }
func (ParticipantLeft) EventName() string   { return EventParticipantLeft }
func (RatingAdded) EventName() string       { return EventRatingAdded }
func (CommentAdded) EventName() string      { return EventCommentAdded }
func (CommentUpdated) EventName() string    { return EventCommentUpdated }
func (CommentVoted) EventName() string      { return EventCommentVoted }
func (SlotCleared) EventName() string       { return EventSlotCleared }

// Decode parses a wire event into its typed variant. Unknown event names
// return (nil, nil): the reducer ignores shapes it does not recognize
// instead of failing the stream.
func Decode(event string, data []byte) (Event, error) {
	switch event {
	case EventParticipantJoined:
		var e ParticipantJoined
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return e, nil
	case EventParticipantLeft:
		var e ParticipantLeft
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return e, nil
	case EventRatingAdded:
		var e RatingAdded
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return e, nil
	case EventCommentAdded:
		var e CommentAdded
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return e, nil
	case EventCommentUpdated:
		var e CommentUpdated
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return e, nil
	case EventCommentVoted:
		var e CommentVoted
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return e, nil
	case EventSlotCleared:
		var e SlotCleared
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", event, err)
		}
		return e, nil
	default:
		return nil, nil
	}
}
