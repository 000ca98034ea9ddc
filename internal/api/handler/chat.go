package handler

import (
	"fmt"
	"net/http"

	"astrochat/backend/internal/apperr"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

// SendMessage is the HTTP twin of the message:send operation and routes the same way.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("Receiver ID and message are required"))
		return
	}
	msg, err := h.Relay.Send(c.Request.Context(), currentUser(c), req.ReceiverID, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Message sent successfully", msg)
}

func (h *Handler) Conversations(c *gin.Context) {
	list, err := h.Relay.Conversations(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Conversations fetched successfully", gin.H{
		"conversations": list,
		"count":         len(list),
	})
}

// Conversation accepts ?page=&limit=.
func (h *Handler) Conversation(c *gin.Context) {
	page, err := h.Relay.Conversation(c.Request.Context(), currentUser(c), c.Param("userId"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Conversation fetched successfully", page)
}

func (h *Handler) MarkRead(c *gin.Context) {
	n, err := h.Relay.MarkRead(c.Request.Context(), currentUser(c), c.Param("senderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("%d message(s) marked as read", n), gin.H{"count": n})
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.Relay.Delete(c.Request.Context(), currentUser(c), c.Param("messageId")); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Message deleted successfully", nil)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.Relay.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Unread count fetched successfully", gin.H{"unreadCount": n})
}
