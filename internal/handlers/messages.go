package handlers

import (
	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/realtime"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ChatHandler handles chat rooms, messages and the websocket endpoint.
type ChatHandler struct {
	base
	WS *realtime.Handler
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(svc *services.Services, ws *realtime.Handler, cfg *config.Config, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{base: base{Svc: svc, Cfg: cfg, Log: log}, WS: ws}
}

// CreateRoomRequest names the patient to open a room with.
type CreateRoomRequest struct {
	Username string `json:"username"`
}

// CreateRoom opens a room between the calling doctor and a patient.
func (h *ChatHandler) CreateRoom(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	room, err := h.Svc.Messaging.CreateRoom(c.Request.Context(), identity, req.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Chat room created", room)
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	Message string `json:"message" binding:"max=4000"`
}

// SentMessage is a stored message with its sender's username.
type SentMessage struct {
	*models.Message
	SenderUsername string `json:"senderUsername"`
}

// SendMessage stores a message and relays it to the room.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	msg, err := h.Svc.Messaging.SendMessage(c.Request.Context(), c.Param("room"), identity, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Message sent", SentMessage{Message: msg, SenderUsername: identity.Username})
}

// ListMessages returns the messages of a room, oldest first.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	messages, err := h.Svc.Messaging.ListMessages(c.Request.Context(), c.Param("room"), identity, listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Messages retrieved", messages)
}

// ListRooms returns the rooms the caller takes part in.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	rooms, err := h.Svc.Messaging.ListRooms(c.Request.Context(), identity)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Chat rooms retrieved", rooms)
}

// WebSocket upgrades an authenticated request to a realtime connection.
func (h *ChatHandler) WebSocket(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	err := h.WS.Serve(c.Writer, c.Request, realtime.Participant{
		UserID:   identity.ID,
		Username: identity.Username,
	})
	if err != nil {
		// the upgrader has already answered the client
		h.Log.WithError(err).WithField("user_id", identity.ID).Debug("websocket upgrade failed")
	}
}
