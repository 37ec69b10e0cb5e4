package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Participant is the authenticated user behind a connection.
type Participant struct {
	UserID   string
	Username string
}

// RoomAuthorizer decides whether a user may join a room.
type RoomAuthorizer interface {
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
}

// ClientMessage is an inbound frame: {"event":"join","room_id":"..."}.
type ClientMessage struct {
	Event  string `json:"event"`
	RoomID string `json:"room_id"`
}

// Handler upgrades HTTP requests and runs the per-connection pumps.
type Handler struct {
	hub         *Hub
	broadcaster Broadcaster
	rooms       RoomAuthorizer
	log         *logrus.Logger
	upgrader    websocket.Upgrader
}

// NewHandler builds a websocket handler. Status events go out through
// broadcaster so they reach clients on other instances too.
func NewHandler(hub *Hub, broadcaster Broadcaster, rooms RoomAuthorizer, allowedOrigin string, log *logrus.Logger) *Handler {
	return &Handler{
		hub:         hub,
		broadcaster: broadcaster,
		rooms:       rooms,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// Serve upgrades the request and blocks until the read side closes.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, user Participant) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(uuid.New().String(), user.UserID, user.Username)
	h.hub.Register(client)

	go h.writePump(client, ws)
	h.readPump(r.Context(), client, ws)
	return nil
}

func (h *Handler) readPump(ctx context.Context, client *Client, ws *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("client_id", client.ID).Debug("websocket closed")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.process(ctx, client, msg)
	}
}

func (h *Handler) process(ctx context.Context, client *Client, msg ClientMessage) {
	if msg.RoomID == "" {
		return
	}

	switch msg.Event {
	case "join":
		ok, err := h.rooms.IsParticipant(ctx, msg.RoomID, client.UserID)
		if err != nil {
			h.log.WithError(err).WithField("room_id", msg.RoomID).Error("room lookup failed")
			return
		}
		if !ok {
			h.log.WithFields(logrus.Fields{"room_id": msg.RoomID, "user_id": client.UserID}).Warn("join refused")
			return
		}
		h.hub.Subscribe(client, RoomTopic(msg.RoomID))
		h.broadcaster.EmitToRoom(msg.RoomID, Event{
			Event:   EventStatus,
			RoomID:  msg.RoomID,
			Message: client.Username + " has entered the room.",
		})
	case "leave":
		h.hub.Unsubscribe(client, RoomTopic(msg.RoomID))
		h.broadcaster.EmitToRoom(msg.RoomID, Event{
			Event:   EventStatus,
			RoomID:  msg.RoomID,
			Message: client.Username + " has left the room.",
		})
	}
}

func (h *Handler) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
