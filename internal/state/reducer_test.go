package state

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

func rating(userID uuid.UUID, slot int, x, y float64) models.Rating {
	return models.Rating{
		ID:         uuid.New(),
		UserID:     userID,
		SlotNumber: slot,
		Position:   models.Position{X: x, Y: y},
	}
}

func comment(userID uuid.UUID, slot int, text string) models.Comment {
	return models.Comment{
		ID:         uuid.New(),
		UserID:     userID,
		SlotNumber: slot,
		Text:       text,
	}
}

func TestApplyRatingLastWriteWins(t *testing.T) {
	user := uuid.New()
	s := Apply(Snapshot{}, RatingAdded{Rating: rating(user, 1, 0.2, 0.2)})
	s = Apply(s, RatingAdded{Rating: rating(user, 1, 0.9, 0.9)})

	require.Len(t, s.Ratings, 1)
	assert.Equal(t, 0.9, s.Ratings[0].Position.X)
}

func TestApplyRatingKeepsOtherKeys(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	s := Apply(Snapshot{}, RatingAdded{Rating: rating(alice, 1, 0.1, 0.1)})
	s = Apply(s, RatingAdded{Rating: rating(alice, 2, 0.2, 0.2)})
	s = Apply(s, RatingAdded{Rating: rating(bob, 1, 0.3, 0.3)})

	require.Len(t, s.Ratings, 3)

	// Replacing alice slot 1 must not touch the other two entries.
	aliceSlot2 := s.Ratings[1]
	bobSlot1 := s.Ratings[2]
	s = Apply(s, RatingAdded{Rating: rating(alice, 1, 0.8, 0.8)})

	require.Len(t, s.Ratings, 3)
	assert.Same(t, aliceSlot2, s.Ratings[0])
	assert.Same(t, bobSlot1, s.Ratings[1])
}

func TestApplyCommentLastWriteWins(t *testing.T) {
	user := uuid.New()
	s := Apply(Snapshot{}, CommentAdded{Comment: comment(user, 1, "first")})
	s = Apply(s, CommentAdded{Comment: comment(user, 1, "second")})

	require.Len(t, s.Comments, 1)
	assert.Equal(t, "second", s.Comments[0].Text)
}

func TestApplyCommentVotedReplacesByID(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	target := comment(alice, 1, "vote me")
	other := comment(bob, 1, "leave me alone")

	s := Apply(Snapshot{}, CommentAdded{Comment: target})
	s = Apply(s, CommentAdded{Comment: other})
	untouched := s.Comments[1]

	voted := target
	voted.Votes = []models.Vote{{UserID: bob, Username: "bob"}}
	voted.VoteCount = 1
	s = Apply(s, CommentVoted{Comment: voted})

	require.Len(t, s.Comments, 2)
	assert.Equal(t, 1, s.Comments[0].VoteCount)
	// Unrelated entries keep reference identity across the merge.
	assert.Same(t, untouched, s.Comments[1])
}

func TestApplyCommentUpdatedForUnseenCommentInserts(t *testing.T) {
	c := comment(uuid.New(), 1, "arrived out of order")
	s := Apply(Snapshot{}, CommentUpdated{Comment: c})

	require.Len(t, s.Comments, 1)
	assert.Equal(t, c.ID, s.Comments[0].ID)
}

func TestApplyParticipantJoinDedupe(t *testing.T) {
	user := uuid.New()
	p := models.Participant{ID: user, Username: "alice"}

	s := Apply(Snapshot{}, ParticipantJoined{Participant: p})
	s = Apply(s, ParticipantJoined{Participant: p})
	require.Len(t, s.Participants, 1)

	s = Apply(s, ParticipantLeft{ParticipantID: user})
	assert.Empty(t, s.Participants)
}

func TestApplySlotClearedRemovesOnlyItsKey(t *testing.T) {
	user := uuid.New()
	s := Apply(Snapshot{}, RatingAdded{Rating: rating(user, 1, 0.5, 0.5)})
	s = Apply(s, RatingAdded{Rating: rating(user, 2, 0.5, 0.5)})
	s = Apply(s, CommentAdded{Comment: comment(user, 1, "slot one")})
	s = Apply(s, CommentAdded{Comment: comment(user, 2, "slot two")})

	s = Apply(s, SlotCleared{UserID: user, SlotNumber: 1})

	require.Len(t, s.Ratings, 1)
	require.Len(t, s.Comments, 1)
	assert.Equal(t, 2, s.Ratings[0].SlotNumber)
	assert.Equal(t, 2, s.Comments[0].SlotNumber)
}

func TestApplyDisjointKeysCommute(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	a := RatingAdded{Rating: rating(alice, 1, 0.1, 0.9)}
	b := RatingAdded{Rating: rating(bob, 1, 0.9, 0.1)}

	ab := Apply(Apply(Snapshot{}, a), b)
	ba := Apply(Apply(Snapshot{}, b), a)

	require.Len(t, ab.Ratings, 2)
	require.Len(t, ba.Ratings, 2)
	byUser := func(s Snapshot) map[uuid.UUID]models.Position {
		m := make(map[uuid.UUID]models.Position)
		for _, r := range s.Ratings {
			m[r.UserID] = r.Position
		}
		return m
	}
	assert.Equal(t, byUser(ab), byUser(ba))
}

func TestDecodeUnknownEventIsNoOp(t *testing.T) {
	ev, err := Decode("totally_new_event", []byte(`{"anything":1}`))
	require.NoError(t, err)
	assert.Nil(t, ev)

	before := Apply(Snapshot{}, RatingAdded{Rating: rating(uuid.New(), 1, 0.5, 0.5)})
	after := Apply(before, ev)
	assert.Equal(t, before, after)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode(EventRatingAdded, []byte(`{"rating":"not an object"`))
	assert.Error(t, err)
}

// The sender receives its own submission back through the broadcast; folding
// the echoed wire payload must converge on the canonical record.
func TestDecodeRoundTripEcho(t *testing.T) {
	r := rating(uuid.New(), 1, 0.25, 0.75)
	body, err := json.Marshal(RatingAdded{Rating: r})
	require.NoError(t, err)

	ev, err := Decode(EventRatingAdded, body)
	require.NoError(t, err)

	s := Apply(Snapshot{}, ev)
	require.Len(t, s.Ratings, 1)
	assert.Equal(t, r.ID, s.Ratings[0].ID)
	assert.Equal(t, r.Position, s.Ratings[0].Position)
}
