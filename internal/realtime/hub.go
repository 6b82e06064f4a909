package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishActivityEvent(activityID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to activity channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeActivity(activityID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// PresenceStore mirrors the live participant set outside this process so
// snapshots see members connected to other instances. Touch refreshes the
// roster's TTL; it must be driven by connection heartbeats or rooms that
// outlive the TTL without new joins lose their roster.
type PresenceStore interface {
	Add(activityID uuid.UUID, p models.Participant) error
	Remove(activityID, userID uuid.UUID) error
	Touch(activityID uuid.UUID) error
}

// Hub maintains activity_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
// The participant roster is deduped by user id, so a reconnect replaces the
// prior entry instead of duplicating it.
type Hub struct {
	// activityID -> map[clientID]*Client
	activities map[uuid.UUID]map[string]*Client
	// activityID -> userID -> participant record
	participants map[uuid.UUID]map[uuid.UUID]*models.Participant
	// activityID -> userID -> live connection count (reconnect overlap)
	conns    map[uuid.UUID]map[uuid.UUID]int
	subs     map[uuid.UUID]func() // cancel Redis subscription per activity
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	presence PresenceStore
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber, presence PresenceStore) *Hub {
	return &Hub{
		activities:   make(map[uuid.UUID]map[string]*Client),
		participants: make(map[uuid.UUID]map[uuid.UUID]*models.Participant),
		conns:        make(map[uuid.UUID]map[uuid.UUID]int),
		subs:         make(map[uuid.UUID]func()),
		logger:       logger,
		redis:        redisPub,
		redisSub:     redisSub,
		presence:     presence,
	}
}

// Register adds a client connection to an activity room. Starts the Redis
// subscription for this activity when the first client arrives.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.activities[c.ActivityID] == nil {
		h.activities[c.ActivityID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeActivity(c.ActivityID, func(event string, payload []byte) {
				h.BroadcastToActivity(c.ActivityID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.ActivityID] = cancel
			}
		}
	}
	h.activities[c.ActivityID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected",
		zap.String("client_id", c.ID), zap.String("activity_id", c.ActivityID.String()))
}

// Unregister removes a client connection from an activity room. Cancels the
// Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.activities[c.ActivityID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.activities, c.ActivityID)
			if cancel, ok := h.subs[c.ActivityID]; ok {
				cancel()
				delete(h.subs, c.ActivityID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected",
		zap.String("client_id", c.ID), zap.String("activity_id", c.ActivityID.String()))
}

// JoinParticipant records a user as a room member and returns the canonical
// participant record. Duplicate joins from the same user (reconnects) keep a
// single roster entry; the connection count tracks the overlap.
func (h *Hub) JoinParticipant(activityID, userID uuid.UUID, username string) models.Participant {
	h.mu.Lock()
	if h.participants[activityID] == nil {
		h.participants[activityID] = make(map[uuid.UUID]*models.Participant)
		h.conns[activityID] = make(map[uuid.UUID]int)
	}
	p, ok := h.participants[activityID][userID]
	if !ok {
		p = &models.Participant{ID: userID, Username: username, JoinedAt: time.Now().UTC()}
		h.participants[activityID][userID] = p
	}
	h.conns[activityID][userID]++
	record := *p
	h.mu.Unlock()

	if h.presence != nil {
		if err := h.presence.Add(activityID, record); err != nil {
			h.logger.Warn("presence add failed", zap.Error(err))
		}
	}
	return record
}

// LeaveParticipant drops one connection for a user and reports whether the
// user left the roster entirely (last connection gone).
func (h *Hub) LeaveParticipant(activityID, userID uuid.UUID) bool {
	h.mu.Lock()
	left := false
	if counts, ok := h.conns[activityID]; ok {
		counts[userID]--
		if counts[userID] <= 0 {
			delete(counts, userID)
			delete(h.participants[activityID], userID)
			if len(h.participants[activityID]) == 0 {
				delete(h.participants, activityID)
				delete(h.conns, activityID)
			}
			left = true
		}
	}
	h.mu.Unlock()

	if left && h.presence != nil {
		if err := h.presence.Remove(activityID, userID); err != nil {
			h.logger.Warn("presence remove failed", zap.Error(err))
		}
	}
	return left
}

// TouchPresence refreshes the roster TTL for an activity. Called from each
// connection's ping cycle so long-lived rooms keep their Redis roster alive
// between joins.
func (h *Hub) TouchPresence(activityID uuid.UUID) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Touch(activityID); err != nil {
		h.logger.Warn("presence touch failed", zap.Error(err))
	}
}

// Participants returns the local roster for an activity.
func (h *Hub) Participants(activityID uuid.UUID) []models.Participant {
	h.mu.RLock()
	defer h.mu.RUnlock()
	roster := h.participants[activityID]
	out := make([]models.Participant, 0, len(roster))
	for _, p := range roster {
		out = append(out, *p)
	}
	return out
}

// BroadcastToActivity sends a message to all clients in an activity (local only).
func (h *Hub) BroadcastToActivity(activityID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.activities[activityID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToActivity publishes to Redis only (no direct local broadcast): the
// Redis subscriber callback performs the broadcast once for every instance,
// including this one, so local clients never see a duplicate. Without Redis
// it degrades to a local broadcast.
func (h *Hub) PublishToActivity(activityID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishActivityEvent(activityID, event, data); err == nil {
			return
		}
		h.logger.Warn("redis publish failed, falling back to local broadcast",
			zap.String("event", event), zap.String("activity_id", activityID.String()))
	}
	h.BroadcastToActivity(activityID, event, json.RawMessage(data))
}

// SendToClient sends a message to a single client in an activity (e.g.
// validation errors surfaced to the submitter only).
func (h *Hub) SendToClient(activityID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	clients := h.activities[activityID]
	c, ok := clients[clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
