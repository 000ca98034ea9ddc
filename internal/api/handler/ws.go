package handler

import (
	"net/http"
	"net/url"
	"strings"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/auth"
	"astrochat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// checkOrigin allows any origin when the list is empty.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[u.Scheme+"://"+u.Host]
		return ok
	}
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket.
// The credential is checked before the upgrade; a rejected handshake creates no state.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = strings.TrimSpace(c.Query("token"))
	}
	if token == "" {
		h.fail(c, apperr.Authentication("Authentication token missing", nil))
		return
	}

	user, err := h.auth.Verify(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, user)
	h.Hub.Connect(client)
	client.Run()
}
