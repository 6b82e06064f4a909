package activities

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/comments"
	"github.com/markothell/holoscopic-app-sub000/internal/middleware"
	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/ratings"
	"github.com/markothell/holoscopic-app-sub000/internal/realtime"
	"github.com/markothell/holoscopic-app-sub000/pkg/queue"
	"github.com/markothell/holoscopic-app-sub000/pkg/response"
)

// AxisRequest is one axis definition in create/update requests.
type AxisRequest struct {
	Label string `json:"label" binding:"required"`
	Min   string `json:"min" binding:"required"`
	Max   string `json:"max" binding:"required"`
}

// CreateRequest is the body for POST /api/activities.
type CreateRequest struct {
	URLName         string      `json:"urlName" binding:"required,max=100"`
	Title           string      `json:"title" binding:"required,max=200"`
	XAxis           AxisRequest `json:"xAxis" binding:"required"`
	YAxis           AxisRequest `json:"yAxis" binding:"required"`
	PromptQuestion  string      `json:"promptQuestion" binding:"required"`
	PromptQuestion2 string      `json:"promptQuestion2"`
	CommentPrompt   string      `json:"commentPrompt" binding:"required"`
	MaxEntries      int         `json:"maxEntries" binding:"gte=0"`
	IsPublic        bool        `json:"isPublic"`
}

// StatusRequest is the body for PATCH /api/activities/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft active completed"`
}

// ParticipantLister reads the live roster across instances (Redis-backed
// presence), with the hub as local fallback.
type ParticipantLister interface {
	List(ctx context.Context, activityID uuid.UUID) ([]models.Participant, error)
}

// Handler handles activity HTTP endpoints.
type Handler struct {
	repo        *Repository
	ratingRepo  *ratings.Repository
	commentRepo *comments.Repository
	hub         *realtime.Hub
	presence    ParticipantLister
	queue       *queue.Queue
	logger      *zap.Logger
}

// NewHandler creates an activities handler.
func NewHandler(repo *Repository, ratingRepo *ratings.Repository, commentRepo *comments.Repository, hub *realtime.Hub, presence ParticipantLister, q *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{
		repo:        repo,
		ratingRepo:  ratingRepo,
		commentRepo: commentRepo,
		hub:         hub,
		presence:    presence,
		queue:       q,
		logger:      logger,
	}
}

// List handles GET /api/activities (public activities plus the caller's own).
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.List(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list activities")
		return
	}
	response.OK(c, gin.H{"activities": list})
}

// Create handles POST /api/activities (admin).
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	a := &models.Activity{
		URLName:         req.URLName,
		Title:           req.Title,
		CreatedBy:       userID,
		XAxis:           models.Axis{Label: req.XAxis.Label, Min: req.XAxis.Min, Max: req.XAxis.Max},
		YAxis:           models.Axis{Label: req.YAxis.Label, Min: req.YAxis.Min, Max: req.YAxis.Max},
		PromptQuestion:  req.PromptQuestion,
		PromptQuestion2: req.PromptQuestion2,
		CommentPrompt:   req.CommentPrompt,
		MaxEntries:      req.MaxEntries,
		IsPublic:        req.IsPublic,
	}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		if IsUniqueViolation(err) {
			response.Conflict(c, "url name already in use")
			return
		}
		h.logger.Error("create activity failed", zap.Error(err))
		response.Internal(c, "failed to create activity")
		return
	}
	response.Created(c, a)
}

// GetByID handles GET /api/activities/:id. The response is the full
// snapshot a client reconciles against after connect or reconnect:
// activity, ratings, comments (with votes), and live participants.
func (h *Handler) GetByID(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	ctx := c.Request.Context()

	activity, err := h.repo.GetByID(ctx, activityID)
	if err != nil {
		response.NotFound(c, "activity not found")
		return
	}
	ratingList, err := h.ratingRepo.ListByActivity(ctx, activityID)
	if err != nil {
		response.Internal(c, "failed to load ratings")
		return
	}
	commentList, err := h.commentRepo.ListByActivity(ctx, activityID)
	if err != nil {
		response.Internal(c, "failed to load comments")
		return
	}
	response.OK(c, gin.H{
		"activity":     activity,
		"ratings":      ratingList,
		"comments":     commentList,
		"participants": h.listParticipants(ctx, activityID),
	})
}

// Participants handles GET /api/activities/:id/participants.
func (h *Handler) Participants(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	response.OK(c, gin.H{"participants": h.listParticipants(c.Request.Context(), activityID)})
}

func (h *Handler) listParticipants(ctx context.Context, activityID uuid.UUID) []models.Participant {
	local := h.hub.Participants(activityID)
	if h.presence == nil {
		return local
	}
	list, err := h.presence.List(ctx, activityID)
	if err != nil {
		h.logger.Warn("presence list failed, using local roster",
			zap.String("activity_id", activityID.String()))
		return local
	}
	if len(list) == 0 && len(local) > 0 {
		// The roster TTL can lapse between heartbeats; members connected to
		// this instance are authoritative over an empty Redis hash.
		return local
	}
	return list
}

// Update handles PATCH /api/activities/:id (owner or admin).
func (h *Handler) Update(c *gin.Context) {
	activity, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	activity.URLName = req.URLName
	activity.Title = req.Title
	activity.XAxis = models.Axis{Label: req.XAxis.Label, Min: req.XAxis.Min, Max: req.XAxis.Max}
	activity.YAxis = models.Axis{Label: req.YAxis.Label, Min: req.YAxis.Min, Max: req.YAxis.Max}
	activity.PromptQuestion = req.PromptQuestion
	activity.PromptQuestion2 = req.PromptQuestion2
	activity.CommentPrompt = req.CommentPrompt
	activity.MaxEntries = req.MaxEntries
	activity.IsPublic = req.IsPublic

	if err := h.repo.Update(c.Request.Context(), activity); err != nil {
		if IsUniqueViolation(err) {
			response.Conflict(c, "url name already in use")
			return
		}
		response.Internal(c, "failed to update activity")
		return
	}
	response.OK(c, activity)
}

// UpdateStatus handles PATCH /api/activities/:id/status (owner or admin).
// Allowed transitions: draft -> active -> completed. Completing an activity
// freezes submissions and enqueues the results export.
func (h *Handler) UpdateStatus(c *gin.Context) {
	activity, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: status must be draft, active, or completed")
		return
	}
	next := models.ActivityStatus(req.Status)
	if !validTransition(activity.Status, next) {
		response.Conflict(c, "invalid status transition")
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), activity.ID, next); err != nil {
		response.Internal(c, "failed to update status")
		return
	}
	if next == models.StatusCompleted && h.queue != nil {
		if err := h.queue.EnqueueActivityExport(c.Request.Context(),
			queue.ActivityExportPayload{ActivityID: activity.ID}); err != nil {
			// Export is best-effort; completion already took effect.
			h.logger.Warn("export enqueue failed", zap.Error(err))
		}
	}
	response.OK(c, gin.H{"id": activity.ID, "status": next})
}

// Delete handles DELETE /api/activities/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), activityID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "activity not found")
			return
		}
		response.Internal(c, "failed to delete activity")
		return
	}
	response.NoContent(c)
}

// loadOwned loads the activity from the :id param and enforces that the
// caller owns it or is an admin.
func (h *Handler) loadOwned(c *gin.Context) (*models.Activity, bool) {
	activityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return nil, false
	}
	activity, err := h.repo.GetByID(c.Request.Context(), activityID)
	if err != nil {
		response.NotFound(c, "activity not found")
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.Get(middleware.ContextUserRole)
	if activity.CreatedBy != userID && role != string(models.RoleAdmin) {
		response.Forbidden(c, "not the activity owner")
		return nil, false
	}
	return activity, true
}

func validTransition(from, to models.ActivityStatus) bool {
	switch from {
	case models.StatusDraft:
		return to == models.StatusActive
	case models.StatusActive:
		return to == models.StatusCompleted
	default:
		return false
	}
}
