// Package client is a Go client for the activity protocol: one persistent
// WebSocket per (activity, user), event subscriptions, and a local snapshot
// kept consistent by the shared merge reducer. Load-test harnesses and bots
// use it in place of the browser client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/markothell/holoscopic-app-sub000/internal/models"
	"github.com/markothell/holoscopic-app-sub000/internal/realtime"
	"github.com/markothell/holoscopic-app-sub000/internal/state"
)

// DefaultDialTimeout bounds how long Connect waits for the server.
const DefaultDialTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	// ServerURL is the WebSocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL string
	// APIURL is the REST base, e.g. http://localhost:8080. When set, writes
	// are mirrored to REST best-effort and snapshots are fetched on
	// (re)connect. Empty disables the REST path.
	APIURL string
	// Token authenticates both the socket and the REST calls.
	Token       string
	DialTimeout time.Duration
	Logger      *zap.Logger
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client maintains one connection to an activity room. The broadcast stream
// is the only source of truth for the snapshot; REST writes are fire-and-
// forget and their failures never touch local state.
type Client struct {
	opts Options
	http *http.Client

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	closed     bool
	activityID uuid.UUID
	userID     uuid.UUID
	username   string
	done       chan struct{}

	handlersMu sync.Mutex
	handlers   map[string]map[int]func(json.RawMessage)
	nextID     int

	snapMu   sync.RWMutex
	snapshot state.Snapshot
}

// New creates a client. Connect must be called before submitting.
func New(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		opts:     opts,
		http:     &http.Client{Timeout: 10 * time.Second},
		handlers: make(map[string]map[int]func(json.RawMessage)),
	}
}

// Connect dials the server, joins the activity room, and reconciles the
// local snapshot against the REST snapshot. It returns once the transport
// reports connected or the dial timeout elapses. Safe to call again after
// Disconnect.
func (c *Client) Connect(ctx context.Context, activityID, userID uuid.UUID, username string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.activityID = activityID
	c.userID = userID
	c.username = username
	c.closed = false
	c.done = make(chan struct{})
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		return err
	}
	go c.readLoop()
	if err := c.join(); err != nil {
		return err
	}
	c.reconcile(ctx)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	u, err := url.Parse(c.opts.ServerURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("activity_id", c.activityID.String())
	q.Set("token", c.opts.Token)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) join() error {
	return c.send(realtime.EventJoinActivity, map[string]interface{}{
		"activityId": c.activityID,
		"userId":     c.userID,
		"username":   c.username,
	})
}

// Disconnect leaves the room and tears the connection down cleanly. The
// leave_activity event goes out before the transport is marked closed, so
// the server learns the leave from the event rather than the close frame.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.send(realtime.EventLeaveActivity, map[string]interface{}{
		"activityId": c.activityID,
		"userId":     c.userID,
	})

	c.mu.Lock()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
}

// On subscribes to a broadcast event. Multiple independent subscribers per
// event are supported; the returned function removes this one.
func (c *Client) On(event string, handler func(json.RawMessage)) (unsubscribe func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]func(json.RawMessage))
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = handler
	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.handlers[event], id)
	}
}

// Snapshot returns a copy of the current activity state.
func (c *Client) Snapshot() state.Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	s := c.snapshot
	s.Ratings = append([]*models.Rating(nil), c.snapshot.Ratings...)
	s.Comments = append([]*models.Comment(nil), c.snapshot.Comments...)
	s.Participants = append([]*models.Participant(nil), c.snapshot.Participants...)
	return s
}

// SubmitRating sends a rating over the socket and mirrors it to REST
// best-effort. Local state updates only when the rating_added broadcast
// comes back with the canonical record.
func (c *Client) SubmitRating(position models.Position, slot int, objectName string) error {
	payload := realtime.SubmitRatingPayload{
		ActivityID: c.activityID,
		UserID:     c.userID,
		Position:   position,
		SlotNumber: slot,
		ObjectName: objectName,
		Timestamp:  time.Now().UTC(),
	}
	if err := c.send(realtime.EventSubmitRating, payload); err != nil {
		return err
	}
	c.restAsync(fmt.Sprintf("/api/activities/%s/rating", c.activityID), payload)
	return nil
}

// SubmitComment sends a comment over the socket and mirrors it to REST
// best-effort.
func (c *Client) SubmitComment(text string, slot int, objectName string) error {
	payload := realtime.SubmitCommentPayload{
		ActivityID: c.activityID,
		UserID:     c.userID,
		Text:       text,
		SlotNumber: slot,
		ObjectName: objectName,
		Timestamp:  time.Now().UTC(),
	}
	if err := c.send(realtime.EventSubmitComment, payload); err != nil {
		return err
	}
	c.restAsync(fmt.Sprintf("/api/activities/%s/comment", c.activityID), payload)
	return nil
}

// VoteComment toggles the caller's vote on a comment. Unlike the submit
// paths this is plain request/response: the server returns the updated
// comment and fans out comment_voted to the room.
func (c *Client) VoteComment(ctx context.Context, commentID uuid.UUID) (*models.Comment, error) {
	if c.opts.APIURL == "" {
		return nil, fmt.Errorf("voting requires APIURL")
	}
	endpoint := fmt.Sprintf("%s/api/activities/%s/comments/%s/vote", c.opts.APIURL, c.activityID, commentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vote: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool            `json:"success"`
		Data    *models.Comment `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode vote response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("vote rejected: %s", body.Error)
	}
	return body.Data, nil
}

func (c *Client) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(envelope{Event: event, Data: data})
}

// restAsync fires a REST write and swallows any failure: the socket
// broadcast is the source of truth, so a lost REST call costs nothing.
func (c *Client) restAsync(path string, payload interface{}) {
	if c.opts.APIURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	go func() {
		req, err := http.NewRequest(http.MethodPost, c.opts.APIURL+path, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
		resp, err := c.http.Do(req)
		if err != nil {
			c.opts.Logger.Debug("best-effort REST write failed", zap.String("path", path), zap.Error(err))
			return
		}
		_ = resp.Body.Close()
	}()
}

func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		done := c.done
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.connected = false
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			c.reconnect(done)
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch folds the event into the snapshot, then notifies subscribers.
// Unknown events are ignored; malformed known events are logged and dropped.
func (c *Client) dispatch(msg envelope) {
	ev, err := state.Decode(msg.Event, msg.Data)
	if err != nil {
		c.opts.Logger.Warn("malformed broadcast dropped", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	if ev != nil {
		c.snapMu.Lock()
		c.snapshot = state.Apply(c.snapshot, ev)
		c.snapMu.Unlock()
	}

	c.handlersMu.Lock()
	var fns []func(json.RawMessage)
	for _, fn := range c.handlers[msg.Event] {
		fns = append(fns, fn)
	}
	c.handlersMu.Unlock()
	for _, fn := range fns {
		fn(msg.Data)
	}
}

// reconnect redials with backoff until it succeeds or the client is closed,
// then rejoins the room and reconciles against the REST snapshot.
func (c *Client) reconnect(done chan struct{}) {
	backoff := NewBackoff()
	for {
		select {
		case <-done:
			return
		case <-time.After(backoff.Next()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
		err := c.dial(ctx)
		cancel()
		if err != nil {
			c.opts.Logger.Debug("reconnect attempt failed", zap.Error(err))
			continue
		}
		c.opts.Logger.Info("reconnected", zap.String("activity_id", c.activityID.String()))
		if err := c.join(); err != nil {
			continue
		}
		reconcileCtx, cancelReconcile := context.WithTimeout(context.Background(), 10*time.Second)
		c.reconcile(reconcileCtx)
		cancelReconcile()
		return
	}
}

// reconcile replaces the local snapshot with the server's full snapshot.
// Events broadcast while the client was offline are not replayed, so the
// fetch is the only way to recover them.
func (c *Client) reconcile(ctx context.Context) {
	if c.opts.APIURL == "" {
		return
	}
	endpoint := fmt.Sprintf("%s/api/activities/%s", c.opts.APIURL, c.activityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	resp, err := c.http.Do(req)
	if err != nil {
		c.opts.Logger.Warn("snapshot fetch failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Activity     models.Activity      `json:"activity"`
			Ratings      []models.Rating      `json:"ratings"`
			Comments     []models.Comment     `json:"comments"`
			Participants []models.Participant `json:"participants"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body.Success {
		c.opts.Logger.Warn("snapshot decode failed", zap.Error(err))
		return
	}

	snap := state.Snapshot{Activity: body.Data.Activity}
	for i := range body.Data.Ratings {
		snap.Ratings = append(snap.Ratings, &body.Data.Ratings[i])
	}
	for i := range body.Data.Comments {
		snap.Comments = append(snap.Comments, &body.Data.Comments[i])
	}
	for i := range body.Data.Participants {
		snap.Participants = append(snap.Participants, &body.Data.Participants[i])
	}
	c.snapMu.Lock()
	c.snapshot = snap
	c.snapMu.Unlock()
}
