package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingServer accepts one WebSocket connection and forwards every
// inbound event name.
func recordingServer(t *testing.T) (*httptest.Server, chan string) {
	t.Helper()
	events := make(chan string, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			events <- msg.Event
		}
	}))
	return srv, events
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, events chan string) string {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func TestConnectSendsJoin(t *testing.T) {
	srv, events := recordingServer(t)
	defer srv.Close()

	c := New(Options{ServerURL: wsURL(srv), Token: "t"})
	require.NoError(t, c.Connect(context.Background(), uuid.New(), uuid.New(), "alice"))
	defer c.Disconnect()

	assert.Equal(t, "join_activity", nextEvent(t, events))
}

func TestDisconnectSendsLeaveBeforeClose(t *testing.T) {
	srv, events := recordingServer(t)
	defer srv.Close()

	c := New(Options{ServerURL: wsURL(srv), Token: "t"})
	require.NoError(t, c.Connect(context.Background(), uuid.New(), uuid.New(), "alice"))
	assert.Equal(t, "join_activity", nextEvent(t, events))

	c.Disconnect()
	assert.Equal(t, "leave_activity", nextEvent(t, events))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	srv, _ := recordingServer(t)
	defer srv.Close()

	c := New(Options{ServerURL: wsURL(srv), Token: "t"})
	require.NoError(t, c.Connect(context.Background(), uuid.New(), uuid.New(), "alice"))
	c.Disconnect()
	c.Disconnect() // second call must be a no-op
}
