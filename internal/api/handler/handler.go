package handler

import (
	"context"
	"strconv"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/chathub"
	"astrochat/backend/internal/consultation"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer credential to a user.
type Authenticator interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// Handler містить посилання на ChatHub та сервіси, яким він делегує запити
type Handler struct {
	Hub    *chathub.ManagerService
	Relay  *relay.Relay
	Broker *consultation.Broker

	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, r *relay.Relay, b *consultation.Broker, auth Authenticator, allowedOrigins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Hub:    hub,
		Relay:  r,
		Broker: b,
		auth:   auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger.Named("http"),
	}
}

// Routes builds the gin engine with every HTTP route mounted.
func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))

	r.GET("/ws", h.ServeWebSocket)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", h.Authenticate())

	consultations := api.Group("/consultations")
	consultations.GET("/my-requests", h.MyRequests)
	consultations.GET("/status/:providerId", h.ConsultationStatus)
	consultations.POST("/cancel/:requestId", h.CancelRequest)
	consultations.GET("/pending", h.PendingRequests)
	consultations.GET("/history", h.RequestHistory)
	consultations.GET("/stats", h.ConsultationStats)
	consultations.POST("/expire-old", RequireRole(models.RoleOperator), h.ExpireOld)

	chat := api.Group("/chat")
	chat.POST("/send", h.SendMessage)
	chat.GET("/conversations", h.Conversations)
	chat.GET("/conversation/:userId", h.Conversation)
	chat.PUT("/read/:senderId", h.MarkRead)
	chat.DELETE("/:messageId", h.DeleteMessage)
	chat.GET("/unread-count", h.UnreadCount)

	providers := api.Group("/providers")
	providers.PUT("/availability", h.ToggleAvailability)
	providers.GET("/online", h.OnlineProviders)

	api.GET("/presence", h.Presence)
	return r
}

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// fail writes err with the HTTP status of its kind. Internal causes stay in the log.
func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	body := gin.H{
		"success": false,
		"message": apperr.PublicMessage(err),
		"code":    string(apperr.KindOf(err)),
	}
	if status := apperr.StatusOf(err); status != "" {
		body["status"] = status
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), body)
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
