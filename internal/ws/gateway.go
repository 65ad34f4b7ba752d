package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/peachgram/chat-backend/internal/auth"
	"github.com/peachgram/chat-backend/internal/chat"
)

// Gateway terminates client connections and dispatches their inbound
// events. Each connection's events run on its own read loop, so handlers
// for one connection never interleave with each other; handlers for
// different connections do.
type Gateway struct {
	hub      *Hub
	verifier *auth.Verifier
	svc      *chat.Service
	upgrader websocket.Upgrader
}

func NewGateway(hub *Hub, verifier *auth.Verifier, svc *chat.Service) *Gateway {
	return &Gateway{
		hub:      hub,
		verifier: verifier,
		svc:      svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type inboundFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// HandleWS upgrades the request and runs the connection until it drops.
// A bad token terminates the socket with no error payload.
func (g *Gateway) HandleWS(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	claims, err := g.verifier.Verify(handshakeToken(c))
	if err != nil {
		_ = conn.Close()
		return
	}

	client := &Client{
		ID:   ulid.Make().String(),
		user: claims,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	regCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := g.hub.register(regCtx, client); err != nil {
		log.Printf("register presence for user %d: %v", claims.UserID, err)
	}
	cancel()

	go client.writePump()
	g.readPump(client)
}

func handshakeToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

func (g *Gateway) readPump(c *Client) {
	defer g.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			g.sendError(c, "invalid frame")
			continue
		}
		g.dispatch(c, frame)
	}
}

func (g *Gateway) dispatch(c *Client, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch frame.Type {
	case "joinRoom":
		g.joinRoom(ctx, c, frame.RoomID)
	case "leaveRoom":
		g.leaveRoom(ctx, c, frame.RoomID)
	case "sendMessage":
		g.sendMessage(ctx, c, frame)
	default:
		g.sendError(c, "unknown event")
	}
}

// joinRoom switches the connection's room. Switching away marks the old
// room read; the peek warms the room's sequence counter before the first
// send.
func (g *Gateway) joinRoom(ctx context.Context, c *Client, roomID string) {
	if roomID == "" {
		g.sendError(c, "room_id required")
		return
	}

	if c.roomID != "" && c.roomID != roomID {
		if err := g.svc.MarkRead(ctx, c.roomID, c.user.UserID); err != nil {
			log.Printf("mark read on switch room %s user %d: %v", c.roomID, c.user.UserID, err)
		}
	}

	if _, err := g.svc.Sequencer().Peek(ctx, roomID); err != nil {
		log.Printf("warm sequence for room %s: %v", roomID, err)
	}
	c.roomID = roomID
}

func (g *Gateway) leaveRoom(ctx context.Context, c *Client, roomID string) {
	if roomID == "" {
		roomID = c.roomID
	}
	c.roomID = ""
	if roomID == "" {
		return
	}
	if err := g.svc.MarkRead(ctx, roomID, c.user.UserID); err != nil {
		log.Printf("mark read on leave room %s user %d: %v", roomID, c.user.UserID, err)
	}
}

func (g *Gateway) sendMessage(ctx context.Context, c *Client, frame inboundFrame) {
	if frame.RoomID == "" || frame.Message == "" {
		g.sendError(c, "room_id and message required")
		return
	}

	sender := chat.Sender{
		UserID:     c.user.UserID,
		Nickname:   c.user.Nickname,
		ProfileURL: c.user.ProfileURL,
	}
	if _, err := g.svc.Send(ctx, frame.RoomID, sender, chat.KindMessage, frame.Message); err != nil {
		log.Printf("send to room %s user %d: %v", frame.RoomID, c.user.UserID, err)
		g.sendError(c, "failed to send message")
	}
}

// disconnect marks the joined room read best effort, then clears presence.
func (g *Gateway) disconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.roomID != "" {
		if err := g.svc.MarkRead(ctx, c.roomID, c.user.UserID); err != nil {
			log.Printf("mark read on disconnect room %s user %d: %v", c.roomID, c.user.UserID, err)
		}
	}
	g.hub.unregister(ctx, c)
	_ = c.conn.Close()
}

func (g *Gateway) sendError(c *Client, msg string) {
	payload, err := json.Marshal(errorFrame{Type: "error", Message: msg})
	if err != nil {
		return
	}
	g.hub.trySend(c, payload)
}
