package submissions

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/markothell/holoscopic-app-sub000/internal/activities"
	"github.com/markothell/holoscopic-app-sub000/internal/comments"
	"github.com/markothell/holoscopic-app-sub000/internal/middleware"
	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/realtime"
	"github.com/markothell/holoscopic-app-sub000/pkg/response"
)

// RatingRequest is the body for POST /api/activities/:id/rating.
type RatingRequest struct {
	Position   models.Position `json:"position" binding:"required"`
	SlotNumber int             `json:"slotNumber"`
	ObjectName string          `json:"objectName"`
	Timestamp  time.Time       `json:"timestamp"`
}

// CommentRequest is the body for POST /api/activities/:id/comment.
type CommentRequest struct {
	Text       string    `json:"text" binding:"required,max=500"`
	SlotNumber int       `json:"slotNumber"`
	ObjectName string    `json:"objectName"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handler exposes the REST write paths. Clients treat these as best-effort:
// the canonical record always comes back through the room broadcast, so a
// dropped REST response never desynchronizes state.
type Handler struct {
	svc *Service
}

// NewHandler creates a submissions handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SubmitRating handles POST /api/activities/:id/rating.
func (h *Handler) SubmitRating(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	username := c.MustGet(middleware.ContextUsername).(string)

	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	err = h.svc.SubmitRating(c.Request.Context(), username, realtime.SubmitRatingPayload{
		ActivityID: activityID,
		UserID:     userID,
		Position:   req.Position,
		SlotNumber: req.SlotNumber,
		ObjectName: req.ObjectName,
		Timestamp:  req.Timestamp,
	})
	h.respond(c, err, "failed to submit rating")
}

// SubmitComment handles POST /api/activities/:id/comment.
func (h *Handler) SubmitComment(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	username := c.MustGet(middleware.ContextUsername).(string)

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	err = h.svc.SubmitComment(c.Request.Context(), username, realtime.SubmitCommentPayload{
		ActivityID: activityID,
		UserID:     userID,
		Text:       req.Text,
		SlotNumber: req.SlotNumber,
		ObjectName: req.ObjectName,
		Timestamp:  req.Timestamp,
	})
	h.respond(c, err, "failed to submit comment")
}

// Vote handles POST /api/activities/:id/comments/:commentId/vote. Voting is
// an idempotent toggle: a second vote from the same user removes the first.
// The updated comment is returned to the caller and fanned out to the room
// as comment_voted.
func (h *Handler) Vote(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	commentID, err := uuid.Parse(c.Param("commentId"))
	if err != nil {
		response.BadRequest(c, "invalid comment id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	username := c.MustGet(middleware.ContextUsername).(string)

	comment, err := h.svc.VoteComment(c.Request.Context(), activityID, commentID, userID, username)
	switch {
	case err == nil:
		response.OK(c, comment)
	case errors.Is(err, activities.ErrNotFound), errors.Is(err, comments.ErrNotFound):
		response.NotFound(c, "comment not found")
	case errors.Is(err, ErrActivityClosed):
		response.Conflict(c, err.Error())
	case errors.Is(err, comments.ErrSelfVote):
		response.Forbidden(c, err.Error())
	default:
		response.Internal(c, "failed to record vote")
	}
}

// ClearSlot handles DELETE /api/activities/:id/slots/:slotNumber: withdraws
// the caller's rating and comment for one slot.
func (h *Handler) ClearSlot(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	slot, err := strconv.Atoi(c.Param("slotNumber"))
	if err != nil || slot < 1 {
		response.BadRequest(c, "invalid slot number")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	err = h.svc.ClearSlot(c.Request.Context(), activityID, userID, slot)
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, activities.ErrNotFound):
		response.NotFound(c, "activity not found")
	case errors.Is(err, ErrActivityClosed):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidSlot):
		response.BadRequest(c, err.Error())
	default:
		response.Internal(c, "failed to clear slot")
	}
}

// respond maps submission outcomes onto the shared REST envelope.
func (h *Handler) respond(c *gin.Context, err error, internalMsg string) {
	switch {
	case err == nil:
		response.OK(c, gin.H{"accepted": true})
	case errors.Is(err, activities.ErrNotFound):
		response.NotFound(c, "activity not found")
	case errors.Is(err, ErrActivityClosed):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidSlot),
		errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrTextTooLong),
		errors.Is(err, ErrObjectNameTooLong):
		response.BadRequest(c, err.Error())
	default:
		response.Internal(c, internalMsg)
	}
}
