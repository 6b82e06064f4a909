package activities

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/realtime"
)

type fakeLister struct {
	list []models.Participant
	err  error
}

func (f *fakeLister) List(context.Context, uuid.UUID) ([]models.Participant, error) {
	return f.list, f.err
}

func participantHandler(presence ParticipantLister, hub *realtime.Hub) *Handler {
	return NewHandler(nil, nil, nil, hub, presence, nil, zap.NewNop())
}

func TestListParticipantsPrefersPresence(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil, nil)
	remote := []models.Participant{{ID: uuid.New(), Username: "remote"}}
	h := participantHandler(&fakeLister{list: remote}, hub)

	got := h.listParticipants(context.Background(), uuid.New())
	require.Len(t, got, 1)
	assert.Equal(t, "remote", got[0].Username)
}

func TestListParticipantsFallsBackOnError(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil, nil)
	activityID := uuid.New()
	hub.JoinParticipant(activityID, uuid.New(), "alice")
	h := participantHandler(&fakeLister{err: errors.New("redis down")}, hub)

	got := h.listParticipants(context.Background(), activityID)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Username)
}

// An expired roster TTL makes the Redis hash read back empty with no error;
// members connected to this instance must still be reported.
func TestListParticipantsFallsBackOnExpiredRoster(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil, nil)
	activityID := uuid.New()
	hub.JoinParticipant(activityID, uuid.New(), "alice")
	h := participantHandler(&fakeLister{list: nil}, hub)

	got := h.listParticipants(context.Background(), activityID)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Username)
}

func TestListParticipantsEmptyRoomStaysEmpty(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil, nil)
	h := participantHandler(&fakeLister{list: nil}, hub)

	assert.Empty(t, h.listParticipants(context.Background(), uuid.New()))
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "activities_url_name_key"}
	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create: %w", dup)))

	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.False(t, IsUniqueViolation(nil))
}
