package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/peachgram/chat-backend/internal/chat"
	"github.com/peachgram/chat-backend/internal/common"
)

type createRoomReq struct {
	FriendIDs []uint64 `json:"friend_ids" binding:"required"`
	Type      string   `json:"type" binding:"required"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	room, err := h.RoomSvc.CreateRoom(c.Request.Context(), uid, req.FriendIDs, chat.RoomType(req.Type))
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			common.Fail(c, http.StatusBadRequest, 10002, "invalid request")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create room")
		return
	}

	common.Ok(c, gin.H{"room_id": room.ID})
}

func (h *Handler) ListRooms(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	var updatedBefore time.Time
	if v := c.Query("updated_before"); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			updatedBefore = t
		}
	}

	rooms, err := h.RoomSvc.ListRooms(c.Request.Context(), uid, limit, updatedBefore)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list rooms")
		return
	}

	var nextBefore string
	if len(rooms) > 0 {
		nextBefore = rooms[len(rooms)-1].UpdatedAt.Format(time.RFC3339Nano)
	}

	common.Ok(c, gin.H{
		"rooms":               rooms,
		"next_updated_before": nextBefore,
	})
}

func (h *Handler) GetRoom(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	room, err := h.RoomSvc.GetRoom(c.Request.Context(), uid, c.Param("room_id"))
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrRoomNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "room not found")
		case errors.Is(err, chat.ErrNotMember):
			common.Fail(c, http.StatusForbidden, 40301, "not a room member")
		default:
			common.Fail(c, http.StatusInternalServerError, 50003, "failed to get room")
		}
		return
	}

	common.Ok(c, room)
}

type inviteMemberReq struct {
	FriendID uint64 `json:"friend_id" binding:"required"`
}

func (h *Handler) InviteMember(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req inviteMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	err := h.RoomSvc.InviteMember(c.Request.Context(), uid, c.Param("room_id"), req.FriendID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotMember):
			common.Fail(c, http.StatusForbidden, 40301, "not a room member")
		case errors.Is(err, chat.ErrRoomNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "room not found")
		case errors.Is(err, chat.ErrInvalidRequest):
			common.Fail(c, http.StatusBadRequest, 10002, "invalid request")
		default:
			common.Fail(c, http.StatusInternalServerError, 50004, "failed to invite member")
		}
		return
	}

	common.Ok(c, gin.H{"success": true})
}

func (h *Handler) ExitRoom(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	err := h.RoomSvc.ExitRoom(c.Request.Context(), uid, c.Param("room_id"))
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotMember):
			common.Fail(c, http.StatusForbidden, 40301, "not a room member")
		case errors.Is(err, chat.ErrRoomNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "room not found")
		case errors.Is(err, chat.ErrInvalidRequest):
			common.Fail(c, http.StatusBadRequest, 10002, "invalid request")
		default:
			common.Fail(c, http.StatusInternalServerError, 50005, "failed to exit room")
		}
		return
	}

	common.Ok(c, gin.H{"success": true})
}
