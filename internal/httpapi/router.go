package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/peachgram/chat-backend/internal/auth"
	"github.com/peachgram/chat-backend/internal/chat"
	"github.com/peachgram/chat-backend/internal/common"
	"github.com/peachgram/chat-backend/internal/httpapi/handlers"
	"github.com/peachgram/chat-backend/internal/httpapi/middleware"
	"github.com/peachgram/chat-backend/internal/ws"
)

func NewRouter(verifier *auth.Verifier, chatSvc *chat.Service, roomSvc *chat.RoomService, gateway *ws.Gateway) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(chatSvc, roomSvc)

	r.GET("/ping", h.Ping)

	// realtime gateway: the handshake verifies its own token
	r.GET("/ws", gateway.HandleWS)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(verifier))
	authGroup.POST("/rooms", h.CreateRoom)
	authGroup.GET("/rooms", h.ListRooms)
	authGroup.GET("/rooms/:room_id", h.GetRoom)
	authGroup.POST("/rooms/:room_id/members", h.InviteMember)
	authGroup.DELETE("/rooms/:room_id/members/me", h.ExitRoom)
	authGroup.GET("/rooms/:room_id/messages", h.ListMessages)
	return r
}
