package submissions

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/activities"
	"github.com/markothell/holoscopic-app-sub000/internal/comments"
	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/realtime"
)

type fakeActivityRepo struct {
	activity *models.Activity
}

func (f *fakeActivityRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Activity, error) {
	if f.activity == nil || f.activity.ID != id {
		return nil, activities.ErrNotFound
	}
	return f.activity, nil
}

type fakeRatingRepo struct {
	upserted *models.Rating
	existing *models.Rating
	deleted  bool
}

func (f *fakeRatingRepo) Upsert(_ context.Context, rt *models.Rating) error {
	f.upserted = rt
	return nil
}

func (f *fakeRatingRepo) GetByUserSlot(_ context.Context, _, _ uuid.UUID, _ int) (*models.Rating, error) {
	if f.existing == nil {
		return nil, comments.ErrNotFound
	}
	return f.existing, nil
}

func (f *fakeRatingRepo) DeleteSlot(_ context.Context, _, _ uuid.UUID, _ int) error {
	f.deleted = true
	return nil
}

type fakeCommentRepo struct {
	upserted *models.Comment
	created  bool
	existing *models.Comment
	voted    *models.Comment
	deleted  bool
}

func (f *fakeCommentRepo) Upsert(_ context.Context, c *models.Comment) (bool, error) {
	f.upserted = c
	return f.created, nil
}

func (f *fakeCommentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	if f.existing == nil || f.existing.ID != id {
		return nil, comments.ErrNotFound
	}
	return f.existing, nil
}

func (f *fakeCommentRepo) GetByUserSlot(_ context.Context, _, _ uuid.UUID, _ int) (*models.Comment, error) {
	if f.existing == nil {
		return nil, comments.ErrNotFound
	}
	return f.existing, nil
}

func (f *fakeCommentRepo) UpdateQuadrant(_ context.Context, id uuid.UUID, quadrant string) (*models.Comment, error) {
	c := *f.existing
	c.Quadrant = quadrant
	return &c, nil
}

func (f *fakeCommentRepo) ToggleVote(_ context.Context, commentID, _ uuid.UUID, _ string) (*models.Comment, error) {
	if f.voted == nil || f.voted.ID != commentID {
		return nil, comments.ErrNotFound
	}
	return f.voted, nil
}

func (f *fakeCommentRepo) DeleteSlot(_ context.Context, _, _ uuid.UUID, _ int) error {
	f.deleted = true
	return nil
}

func activeActivity(maxEntries int) *models.Activity {
	return &models.Activity{ID: uuid.New(), Status: models.StatusActive, MaxEntries: maxEntries}
}

func newTestService(activity *models.Activity) (*Service, *fakeRatingRepo, *fakeCommentRepo) {
	ratingRepo := &fakeRatingRepo{}
	commentRepo := &fakeCommentRepo{}
	hub := realtime.NewHub(zap.NewNop(), nil, nil, nil)
	svc := NewService(&fakeActivityRepo{activity: activity}, ratingRepo, commentRepo, hub, zap.NewNop())
	return svc, ratingRepo, commentRepo
}

func TestSubmitRatingClampsAndDefaultsSlot(t *testing.T) {
	activity := activeActivity(1)
	svc, ratingRepo, _ := newTestService(activity)

	err := svc.SubmitRating(context.Background(), "alice", realtime.SubmitRatingPayload{
		ActivityID: activity.ID,
		UserID:     uuid.New(),
		Position:   models.Position{X: 1.7, Y: -0.3},
		SlotNumber: 0,
	})
	require.NoError(t, err)
	require.NotNil(t, ratingRepo.upserted)
	assert.Equal(t, 1, ratingRepo.upserted.SlotNumber)
	assert.Equal(t, models.Position{X: 1, Y: 0}, ratingRepo.upserted.Position)
}

func TestSubmitRatingRejectsClosedActivity(t *testing.T) {
	activity := activeActivity(1)
	activity.Status = models.StatusCompleted
	svc, ratingRepo, _ := newTestService(activity)

	err := svc.SubmitRating(context.Background(), "alice", realtime.SubmitRatingPayload{
		ActivityID: activity.ID, UserID: uuid.New(), SlotNumber: 1,
	})
	assert.ErrorIs(t, err, ErrActivityClosed)
	assert.Nil(t, ratingRepo.upserted)
}

func TestSubmitRatingRejectsSlotOverBudget(t *testing.T) {
	activity := activeActivity(2)
	svc, _, _ := newTestService(activity)

	err := svc.SubmitRating(context.Background(), "alice", realtime.SubmitRatingPayload{
		ActivityID: activity.ID, UserID: uuid.New(), SlotNumber: 3,
	})
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestSubmitRatingUnlimitedSlots(t *testing.T) {
	activity := activeActivity(0)
	svc, ratingRepo, _ := newTestService(activity)

	err := svc.SubmitRating(context.Background(), "alice", realtime.SubmitRatingPayload{
		ActivityID: activity.ID, UserID: uuid.New(), SlotNumber: 99,
	})
	require.NoError(t, err)
	assert.Equal(t, 99, ratingRepo.upserted.SlotNumber)
}

func TestSubmitRatingUnknownActivity(t *testing.T) {
	svc, _, _ := newTestService(activeActivity(1))

	err := svc.SubmitRating(context.Background(), "alice", realtime.SubmitRatingPayload{
		ActivityID: uuid.New(), UserID: uuid.New(), SlotNumber: 1,
	})
	assert.ErrorIs(t, err, activities.ErrNotFound)
}

func TestSubmitCommentValidation(t *testing.T) {
	activity := activeActivity(1)
	svc, _, _ := newTestService(activity)
	ctx := context.Background()
	userID := uuid.New()

	err := svc.SubmitComment(ctx, "alice", realtime.SubmitCommentPayload{
		ActivityID: activity.ID, UserID: userID, Text: "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyText)

	long := make([]byte, models.MaxCommentLen+1)
	for i := range long {
		long[i] = 'a'
	}
	err = svc.SubmitComment(ctx, "alice", realtime.SubmitCommentPayload{
		ActivityID: activity.ID, UserID: userID, Text: string(long),
	})
	assert.ErrorIs(t, err, ErrTextTooLong)

	err = svc.SubmitComment(ctx, "alice", realtime.SubmitCommentPayload{
		ActivityID: activity.ID, UserID: userID, Text: "ok",
		ObjectName: "an object name that is far too long",
	})
	assert.ErrorIs(t, err, ErrObjectNameTooLong)
}

func TestSubmitCommentCountsCharactersNotBytes(t *testing.T) {
	activity := activeActivity(1)
	svc, _, commentRepo := newTestService(activity)
	commentRepo.created = true
	ctx := context.Background()
	userID := uuid.New()

	// 400 CJK characters are 1200 bytes but well within the 500-char limit.
	err := svc.SubmitComment(ctx, "alice", realtime.SubmitCommentPayload{
		ActivityID: activity.ID, UserID: userID, SlotNumber: 1,
		Text: strings.Repeat("漢", 400),
	})
	require.NoError(t, err)
	require.NotNil(t, commentRepo.upserted)

	err = svc.SubmitComment(ctx, "alice", realtime.SubmitCommentPayload{
		ActivityID: activity.ID, UserID: userID, SlotNumber: 1,
		Text: strings.Repeat("漢", models.MaxCommentLen+1),
	})
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestSubmitRatingObjectNameCountsCharacters(t *testing.T) {
	activity := activeActivity(1)
	svc, ratingRepo, _ := newTestService(activity)

	err := svc.SubmitRating(context.Background(), "alice", realtime.SubmitRatingPayload{
		ActivityID: activity.ID, UserID: uuid.New(), SlotNumber: 1,
		ObjectName: strings.Repeat("語", models.MaxObjectNameLen),
	})
	require.NoError(t, err)
	require.NotNil(t, ratingRepo.upserted)
}

func TestSubmitCommentAttachesQuadrantFromRating(t *testing.T) {
	activity := activeActivity(1)
	svc, ratingRepo, commentRepo := newTestService(activity)
	commentRepo.created = true
	userID := uuid.New()
	ratingRepo.existing = &models.Rating{
		ActivityID: activity.ID, UserID: userID, SlotNumber: 1,
		Position: models.Position{X: 0.1, Y: 0.9},
	}

	err := svc.SubmitComment(context.Background(), "alice", realtime.SubmitCommentPayload{
		ActivityID: activity.ID, UserID: userID, SlotNumber: 1, Text: "  tagged  ",
	})
	require.NoError(t, err)
	require.NotNil(t, commentRepo.upserted)
	assert.Equal(t, models.QuadrantTopLeft, commentRepo.upserted.Quadrant)
	assert.Equal(t, "tagged", commentRepo.upserted.Text)
}

func TestVoteCommentRejectsCrossActivityComment(t *testing.T) {
	activity := activeActivity(1)
	svc, _, commentRepo := newTestService(activity)
	commentRepo.voted = &models.Comment{ID: uuid.New(), ActivityID: uuid.New()}

	_, err := svc.VoteComment(context.Background(), activity.ID, commentRepo.voted.ID, uuid.New(), "bob")
	assert.ErrorIs(t, err, comments.ErrNotFound)
}

func TestVoteCommentClosedActivity(t *testing.T) {
	activity := activeActivity(1)
	activity.Status = models.StatusDraft
	svc, _, _ := newTestService(activity)

	_, err := svc.VoteComment(context.Background(), activity.ID, uuid.New(), uuid.New(), "bob")
	assert.ErrorIs(t, err, ErrActivityClosed)
}

func TestClearSlotDeletesBothRecords(t *testing.T) {
	activity := activeActivity(1)
	svc, ratingRepo, commentRepo := newTestService(activity)

	err := svc.ClearSlot(context.Background(), activity.ID, uuid.New(), 1)
	require.NoError(t, err)
	assert.True(t, ratingRepo.deleted)
	assert.True(t, commentRepo.deleted)
}
