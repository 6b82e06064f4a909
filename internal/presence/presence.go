// Package presence mirrors live activity rosters into Redis so that
// snapshot reads see participants connected to any server instance.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

// rosterTTL bounds how long a roster survives a crashed instance that never
// removed its members.
const rosterTTL = 2 * time.Minute

// Store keeps one Redis hash per activity: field = user id, value = the
// participant record.
type Store struct {
	client *redis.Client
}

// NewStore creates a Redis-backed presence store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func rosterKey(activityID uuid.UUID) string {
	return fmt.Sprintf("presence:activity:%s", activityID)
}

// Add registers a participant in the activity roster and refreshes the TTL.
func (s *Store) Add(activityID uuid.UUID, p models.Participant) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	key := rosterKey(activityID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, p.ID.String(), body)
	pipe.Expire(ctx, key, rosterTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Touch refreshes the roster TTL; called on heartbeats so long-lived rooms
// outlive the TTL window.
func (s *Store) Touch(activityID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Expire(ctx, rosterKey(activityID), rosterTTL).Err()
}

// Remove deletes a participant from the activity roster.
func (s *Store) Remove(activityID, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.HDel(ctx, rosterKey(activityID), userID.String()).Err()
}

// List returns every participant currently registered for the activity,
// across all instances.
func (s *Store) List(ctx context.Context, activityID uuid.UUID) ([]models.Participant, error) {
	values, err := s.client.HVals(ctx, rosterKey(activityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence list: %w", err)
	}
	out := make([]models.Participant, 0, len(values))
	for _, v := range values {
		var p models.Participant
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
