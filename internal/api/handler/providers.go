package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ToggleAvailability flips the calling provider's availability flag.
func (h *Handler) ToggleAvailability(c *gin.Context) {
	user, err := h.Broker.ToggleAvailability(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	state := "unavailable"
	if user.IsAvailable {
		state = "available"
	}
	respond(c, http.StatusOK, fmt.Sprintf("You are now %s", state), gin.H{"isAvailable": user.IsAvailable})
}

func (h *Handler) OnlineProviders(c *gin.Context) {
	providers, err := h.Broker.OnlineProviders(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Online and available astrologers fetched successfully", gin.H{
		"astrologers": providers,
		"count":       len(providers),
	})
}

// Presence returns the ids of every connected user.
func (h *Handler) Presence(c *gin.Context) {
	ids := h.Hub.OnlineIDs()
	respond(c, http.StatusOK, "Online users fetched successfully", gin.H{
		"onlineUsers": ids,
		"count":       len(ids),
	})
}
