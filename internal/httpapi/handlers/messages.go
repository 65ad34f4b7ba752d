package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/peachgram/chat-backend/internal/chat"
	"github.com/peachgram/chat-backend/internal/common"
)

// ListMessages is the history page endpoint. Messages come back in
// ascending seq order; next_before_seq is the cursor for the next-older
// page (0 when this page is the oldest).
func (h *Handler) ListMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	roomID := c.Param("room_id")

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeSeq uint64
	if v := c.Query("before_seq"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeSeq = n
		}
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), roomID, uid, limit, beforeSeq)
	if err != nil {
		if errors.Is(err, chat.ErrNotMember) {
			common.Fail(c, http.StatusForbidden, 40301, "not a room member")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to list messages")
		return
	}

	var nextBeforeSeq uint64
	if len(msgs) > 0 {
		nextBeforeSeq = msgs[0].Seq
	}

	common.Ok(c, gin.H{
		"messages":        msgs,
		"next_before_seq": nextBeforeSeq,
	})
}
