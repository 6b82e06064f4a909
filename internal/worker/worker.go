// Package worker processes background jobs dequeued from Redis. Its only
// job today is exporting completed activities to S3.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/activities"
	"github.com/markothell/holoscopic-app-sub000/internal/comments"
	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/ratings"
	"github.com/markothell/holoscopic-app-sub000/pkg/queue"
	"github.com/markothell/holoscopic-app-sub000/pkg/storage"
)

// resultsDoc is the JSON document uploaded per completed activity.
type resultsDoc struct {
	Activity    models.Activity  `json:"activity"`
	Ratings     []models.Rating  `json:"ratings"`
	Comments    []models.Comment `json:"comments"`
	QuadrantTop map[string]int   `json:"votesByQuadrant"`
	ExportedAt  time.Time        `json:"exportedAt"`
}

// ExportProcessor consumes activity export jobs and uploads result
// documents to S3.
type ExportProcessor struct {
	activityRepo *activities.Repository
	ratingRepo   *ratings.Repository
	commentRepo  *comments.Repository
	s3           *storage.S3
	queue        *queue.Queue
	logger       *zap.Logger
}

// NewExportProcessor creates an export worker.
func NewExportProcessor(activityRepo *activities.Repository, ratingRepo *ratings.Repository, commentRepo *comments.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *ExportProcessor {
	return &ExportProcessor{
		activityRepo: activityRepo,
		ratingRepo:   ratingRepo,
		commentRepo:  commentRepo,
		s3:           s3,
		queue:        q,
		logger:       logger,
	}
}

// Run dequeues and processes jobs until ctx is cancelled.
func (p *ExportProcessor) Run(ctx context.Context) {
	p.logger.Info("export worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopped")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.process(ctx, job); err != nil {
			p.logger.Error("export job failed", zap.String("job_id", job.ID), zap.Error(err))
			_ = p.queue.Retry(ctx, job)
		}
	}
}

func (p *ExportProcessor) process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeActivityExport {
		p.logger.Warn("unknown job type skipped", zap.String("type", string(job.Type)))
		return nil
	}
	var payload queue.ActivityExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	doc, err := p.buildDoc(ctx, payload.ActivityID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	key := fmt.Sprintf("exports/%s/%s.json", payload.ActivityID, doc.ExportedAt.UTC().Format("20060102T150405Z"))
	if _, err := p.s3.UploadExport(ctx, key, body); err != nil {
		return err
	}
	p.logger.Info("activity exported",
		zap.String("activity_id", payload.ActivityID.String()), zap.String("key", key))
	return nil
}

func (p *ExportProcessor) buildDoc(ctx context.Context, activityID uuid.UUID) (*resultsDoc, error) {
	activity, err := p.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	ratingList, err := p.ratingRepo.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	commentList, err := p.commentRepo.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	tally := make(map[string]int)
	for _, c := range commentList {
		if c.Quadrant != "" {
			tally[c.Quadrant] += c.VoteCount
		}
	}
	return &resultsDoc{
		Activity:    *activity,
		Ratings:     ratingList,
		Comments:    commentList,
		QuadrantTop: tally,
		ExportedAt:  time.Now().UTC(),
	}, nil
}
