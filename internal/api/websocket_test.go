package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidewizard/backend/internal/events"
)

func dialEvents(t *testing.T, env *testEnv, id string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	conn := dialEvents(t, env, id)

	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeConnected, msg.Type)
	assert.Equal(t, id, msg.ID)
	assert.Contains(t, string(msg.Payload), `"stepName":"upload"`)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing, ID: "p1"}))
	msg = readMessage(t, conn)
	assert.Equal(t, MsgTypePong, msg.Type)
	assert.Equal(t, "p1", msg.ID)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "bogus", ID: "b1"}))
	msg = readMessage(t, conn)
	assert.Equal(t, MsgTypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "INVALID_TYPE")

	// Published events reach the client once it is subscribed
	require.Eventually(t, func() bool { return env.hub.Subscribers(id) == 1 }, time.Second, 10*time.Millisecond)
	env.hub.Publish(id, events.TypeJob, map[string]string{"status": "complete"})
	msg = readMessage(t, conn)
	assert.Equal(t, events.TypeJob, msg.Type)
	assert.JSONEq(t, `{"status":"complete"}`, string(msg.Payload))
}

func TestEventsUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/missing/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestEventsClosedWithSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	conn := dialEvents(t, env, id)
	readMessage(t, conn)

	require.Eventually(t, func() bool { return env.hub.Subscribers(id) == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, env.sessions.Delete(id))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
