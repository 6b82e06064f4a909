package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

type fakePresence struct {
	added   int
	removed int
	touched int
}

func (f *fakePresence) Add(uuid.UUID, models.Participant) error { f.added++; return nil }
func (f *fakePresence) Remove(uuid.UUID, uuid.UUID) error       { f.removed++; return nil }
func (f *fakePresence) Touch(uuid.UUID) error                   { f.touched++; return nil }

func newTestHub() *Hub {
	return NewHub(zap.NewNop(), nil, nil, nil)
}

func TestJoinParticipantDedupesByUser(t *testing.T) {
	hub := newTestHub()
	activityID, userID := uuid.New(), uuid.New()

	first := hub.JoinParticipant(activityID, userID, "alice")
	second := hub.JoinParticipant(activityID, userID, "alice")

	assert.Equal(t, first.JoinedAt, second.JoinedAt)
	require.Len(t, hub.Participants(activityID), 1)
}

func TestLeaveParticipantCountsConnections(t *testing.T) {
	hub := newTestHub()
	activityID, userID := uuid.New(), uuid.New()

	// Two live connections for the same user (reconnect overlap).
	hub.JoinParticipant(activityID, userID, "alice")
	hub.JoinParticipant(activityID, userID, "alice")

	assert.False(t, hub.LeaveParticipant(activityID, userID))
	require.Len(t, hub.Participants(activityID), 1)

	assert.True(t, hub.LeaveParticipant(activityID, userID))
	assert.Empty(t, hub.Participants(activityID))
}

func TestLeaveParticipantUnknownUser(t *testing.T) {
	hub := newTestHub()
	assert.False(t, hub.LeaveParticipant(uuid.New(), uuid.New()))
}

func TestHubMirrorsPresence(t *testing.T) {
	presence := &fakePresence{}
	hub := NewHub(zap.NewNop(), nil, nil, presence)
	activityID, userID := uuid.New(), uuid.New()

	hub.JoinParticipant(activityID, userID, "alice")
	assert.Equal(t, 1, presence.added)

	// The ping cycle keeps the roster TTL alive between joins.
	hub.TouchPresence(activityID)
	hub.TouchPresence(activityID)
	assert.Equal(t, 2, presence.touched)

	hub.LeaveParticipant(activityID, userID)
	assert.Equal(t, 1, presence.removed)
}

func TestTouchPresenceWithoutStore(t *testing.T) {
	hub := newTestHub()
	hub.TouchPresence(uuid.New()) // must not panic
}

func TestParticipantsPerActivityIsolation(t *testing.T) {
	hub := newTestHub()
	a, b := uuid.New(), uuid.New()

	hub.JoinParticipant(a, uuid.New(), "alice")
	hub.JoinParticipant(b, uuid.New(), "bob")

	assert.Len(t, hub.Participants(a), 1)
	assert.Len(t, hub.Participants(b), 1)
	assert.Equal(t, "alice", hub.Participants(a)[0].Username)
}
