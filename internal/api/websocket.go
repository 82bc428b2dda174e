package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/events"
	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/session"
)

// WebSocket message types for the session event stream
const (
	// Client -> Server messages
	MsgTypePing  = "ping"
	MsgTypeState = "state"

	// Server -> Client messages, besides the event types themselves
	MsgTypeConnected = "connected"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

// WSMessage is the envelope of every frame in both directions
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error frame
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// EventsHandlerImpl streams a session's events over a WebSocket
type EventsHandlerImpl struct {
	sessions *session.Manager
	hub      *events.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(sessions *session.Manager, hub *events.Hub) EventsHandler {
	return &EventsHandlerImpl{
		sessions: sessions,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		log: logging.WithComponent("websocket"),
	}
}

// wsConn serializes writes; gorilla allows one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(msgType, id string, payload any) error {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = data
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(msg)
}

// HandleEvents upgrades the connection and forwards hub events until the
// client leaves or the session is dropped.
func (h *EventsHandlerImpl) HandleEvents(c echo.Context) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	out := &wsConn{conn: conn}

	sub := h.hub.Subscribe(ws.ID)
	defer sub.Close()

	h.log.Info("client connected", "session", ws.ID)
	if err := out.send(MsgTypeConnected, ws.ID, ws.Controller.State()); err != nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.C {
			if err := out.send(ev.Type, ev.SessionID, ev.Payload); err != nil {
				return
			}
		}
		// Subscription dropped: session deleted or client too slow
		out.mu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(time.Second))
		out.mu.Unlock()
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Warn("connection error", "session", ws.ID, "error", err)
			}
			break
		}

		h.sessions.Touch(ws.ID)
		switch msg.Type {
		case MsgTypePing:
			err = out.send(MsgTypePong, msg.ID, nil)
		case MsgTypeState:
			err = out.send(events.TypeWizardStep, ws.ID, ws.Controller.State())
		default:
			err = out.send(MsgTypeError, msg.ID, WSErrorResponse{
				Message: "Unknown message type: " + msg.Type,
				Code:    "INVALID_TYPE",
			})
		}
		if err != nil {
			break
		}
	}

	sub.Close()
	<-done
	h.log.Info("client disconnected", "session", ws.ID)
	return nil
}
