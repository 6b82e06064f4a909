package state

import (
	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

// Snapshot is an immutable view of one activity's shared state. Apply
// returns a new Snapshot; entries untouched by an event are carried over
// by pointer, so unrelated records keep reference identity across merges.
type Snapshot struct {
	Activity     models.Activity
	Ratings      []*models.Rating
	Comments     []*models.Comment
	Participants []*models.Participant
}

// Apply folds one broadcast event into the snapshot. Each event type has
// exactly one merge key:
//
//	rating_added                  (userId, slotNumber), last write wins
//	comment_added                 (userId, slotNumber), last write wins
//	comment_updated/comment_voted  comment id
//	participant_joined/left        participant id
//	slot_cleared                  (userId, slotNumber), removal
//
// Events for disjoint keys commute; nothing outside the event's key is
// scanned or mutated. Nil events (unknown wire shapes) are a no-op.
func Apply(s Snapshot, ev Event) Snapshot {
	switch e := ev.(type) {
	case RatingAdded:
		return applyRatingAdded(s, e)
	case CommentAdded:
		return applyCommentAdded(s, e)
	case CommentUpdated:
		return applyCommentByID(s, e.Comment)
	case CommentVoted:
		return applyCommentByID(s, e.Comment)
	case ParticipantJoined:
		return applyParticipantJoined(s, e)
	case ParticipantLeft:
		return applyParticipantLeft(s, e)
	case SlotCleared:
		return applySlotCleared(s, e)
	default:
		return s
	}
}

func applyRatingAdded(s Snapshot, e RatingAdded) Snapshot {
	r := e.Rating
	out := make([]*models.Rating, 0, len(s.Ratings)+1)
	for _, existing := range s.Ratings {
		if existing.UserID == r.UserID && existing.SlotNumber == r.SlotNumber {
			continue
		}
		out = append(out, existing)
	}
	out = append(out, &r)
	s.Ratings = out
	return s
}

func applyCommentAdded(s Snapshot, e CommentAdded) Snapshot {
	c := e.Comment
	out := make([]*models.Comment, 0, len(s.Comments)+1)
	for _, existing := range s.Comments {
		if existing.UserID == c.UserID && existing.SlotNumber == c.SlotNumber {
			continue
		}
		out = append(out, existing)
	}
	out = append(out, &c)
	s.Comments = out
	return s
}

// applyCommentByID replaces the comment with a matching id and leaves every
// other entry untouched. Used for comment_updated (server-recomputed
// metadata) and comment_voted (vote toggle); both mutate an existing
// comment, so identity-by-(user,slot) is irrelevant here.
func applyCommentByID(s Snapshot, c models.Comment) Snapshot {
	out := make([]*models.Comment, len(s.Comments))
	replaced := false
	for i, existing := range s.Comments {
		if existing.ID == c.ID {
			cc := c
			out[i] = &cc
			replaced = true
			continue
		}
		out[i] = existing
	}
	if !replaced {
		// Update for a comment we have not seen yet (events for different
		// keys may arrive in any order); treat it as an insert.
		cc := c
		out = append(out, &cc)
	}
	s.Comments = out
	return s
}

func applyParticipantJoined(s Snapshot, e ParticipantJoined) Snapshot {
	p := e.Participant
	out := make([]*models.Participant, 0, len(s.Participants)+1)
	for _, existing := range s.Participants {
		if existing.ID == p.ID {
			continue
		}
		out = append(out, existing)
	}
	out = append(out, &p)
	s.Participants = out
	return s
}

func applyParticipantLeft(s Snapshot, e ParticipantLeft) Snapshot {
	out := make([]*models.Participant, 0, len(s.Participants))
	for _, existing := range s.Participants {
		if existing.ID == e.ParticipantID {
			continue
		}
		out = append(out, existing)
	}
	s.Participants = out
	return s
}

func applySlotCleared(s Snapshot, e SlotCleared) Snapshot {
	ratings := make([]*models.Rating, 0, len(s.Ratings))
	for _, r := range s.Ratings {
		if r.UserID == e.UserID && r.SlotNumber == e.SlotNumber {
			continue
		}
		ratings = append(ratings, r)
	}
	comments := make([]*models.Comment, 0, len(s.Comments))
	for _, c := range s.Comments {
		if c.UserID == e.UserID && c.SlotNumber == e.SlotNumber {
			continue
		}
		comments = append(comments, c)
	}
	s.Ratings = ratings
	s.Comments = comments
	return s
}
