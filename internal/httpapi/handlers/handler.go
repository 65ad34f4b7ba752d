package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/peachgram/chat-backend/internal/chat"
	"github.com/peachgram/chat-backend/internal/httpapi/middleware"
)

type Handler struct {
	ChatSvc *chat.Service
	RoomSvc *chat.RoomService
}

func NewHandler(chatSvc *chat.Service, roomSvc *chat.RoomService) *Handler {
	return &Handler{ChatSvc: chatSvc, RoomSvc: roomSvc}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
