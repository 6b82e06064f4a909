package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound client -> server event names.
const (
	EventJoinActivity  = "join_activity"
	EventLeaveActivity = "leave_activity"
	EventSubmitRating  = "submit_rating"
	EventSubmitComment = "submit_comment"
)

// SubmitRatingPayload is the inbound submit_rating event body.
type SubmitRatingPayload struct {
	ActivityID uuid.UUID       `json:"activityId"`
	UserID     uuid.UUID       `json:"userId"`
	Position   models.Position `json:"position"`
	SlotNumber int             `json:"slotNumber"`
	ObjectName string          `json:"objectName"`
	Timestamp  time.Time       `json:"timestamp"`
}

// SubmitCommentPayload is the inbound submit_comment event body.
type SubmitCommentPayload struct {
	ActivityID uuid.UUID `json:"activityId"`
	UserID     uuid.UUID `json:"userId"`
	Text       string    `json:"text"`
	SlotNumber int       `json:"slotNumber"`
	ObjectName string    `json:"objectName"`
	Timestamp  time.Time `json:"timestamp"`
}

type joinPayload struct {
	ActivityID uuid.UUID `json:"activityId"`
	UserID     uuid.UUID `json:"userId"`
	Username   string    `json:"username"`
}

type leavePayload struct {
	ActivityID uuid.UUID `json:"activityId"`
	UserID     uuid.UUID `json:"userId"`
}

// Sink accepts state-mutating submissions from the socket. Implementations
// validate, persist the canonical record, and broadcast the result to the
// room; validation failures come back as errors surfaced to the sender only.
type Sink interface {
	SubmitRating(ctx context.Context, username string, p SubmitRatingPayload) error
	SubmitComment(ctx context.Context, username string, p SubmitCommentPayload) error
}

// Client represents a single WebSocket connection in an activity room.
type Client struct {
	ID         string
	ActivityID uuid.UUID
	UserID     uuid.UUID
	Username   string
	hub        *Hub
	sink       Sink
	conn       *websocket.Conn
	send       chan WSMessage
	logger     *zap.Logger
	joined     bool
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, logger *zap.Logger, jwtValidate func(token string) (userID uuid.UUID, username string, err error), sink Sink) gin.HandlerFunc {
	return func(c *gin.Context) {
		activityIDStr := c.Query("activity_id")
		token := c.Query("token")
		if activityIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "activity_id and token required"})
			return
		}
		activityID, err := uuid.Parse(activityIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity_id"})
			return
		}
		userID, username, err := jwtValidate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:         uuid.New().String(),
			ActivityID: activityID,
			UserID:     userID,
			Username:   username,
			hub:        hub,
			sink:       sink,
			conn:       conn,
			send:       make(chan WSMessage, 256),
			logger:     logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case EventJoinActivity:
			var p joinPayload
			if err := json.Unmarshal(msg.Data, &p); err != nil || p.ActivityID != c.ActivityID {
				c.dropMalformed(msg.Event, err)
				continue
			}
			participant := c.hub.JoinParticipant(c.ActivityID, c.UserID, c.Username)
			c.joined = true
			c.hub.PublishToActivity(c.ActivityID, state.EventParticipantJoined,
				state.ParticipantJoined{Participant: participant})

		case EventLeaveActivity:
			c.leave()

		case EventSubmitRating:
			var p SubmitRatingPayload
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				c.dropMalformed(msg.Event, err)
				continue
			}
			// The socket identity is authoritative, not the payload.
			p.ActivityID = c.ActivityID
			p.UserID = c.UserID
			if err := c.sink.SubmitRating(context.Background(), c.Username, p); err != nil {
				c.sendError(err)
			}

		case EventSubmitComment:
			var p SubmitCommentPayload
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				c.dropMalformed(msg.Event, err)
				continue
			}
			p.ActivityID = c.ActivityID
			p.UserID = c.UserID
			if err := c.sink.SubmitComment(context.Background(), c.Username, p); err != nil {
				c.sendError(err)
			}

		default:
			// ignore
		}
	}
}

// leave removes this connection's participant registration, broadcasting
// participant_left when the user's last connection is gone.
func (c *Client) leave() {
	if !c.joined {
		return
	}
	c.joined = false
	if c.hub.LeaveParticipant(c.ActivityID, c.UserID) {
		c.hub.PublishToActivity(c.ActivityID, state.EventParticipantLeft,
			state.ParticipantLeft{ParticipantID: c.UserID})
	}
}

// dropMalformed logs and discards a bad payload without crashing the room.
func (c *Client) dropMalformed(event string, err error) {
	c.logger.Warn("malformed event payload dropped",
		zap.String("event", event), zap.String("client_id", c.ID), zap.Error(err))
}

// sendError surfaces a rejected submission to the sender only.
func (c *Client) sendError(err error) {
	c.hub.SendToClient(c.ActivityID, c.ID, "error", gin.H{"message": err.Error()})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.hub.TouchPresence(c.ActivityID)
		}
	}
}
