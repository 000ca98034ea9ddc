package handler

import (
	"net/http"
	"time"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/auth"
	"astrochat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userKey = "user"

// Authenticate resolves the bearer token and stores the user in the gin context.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			h.fail(c, apperr.Authentication("Please login to access this resource", nil))
			return
		}
		user, err := h.auth.Verify(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRole rejects users whose role is not role. Must run after Authenticate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Access denied",
				"code":    string(apperr.KindAuthorization),
			})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

// RequestLogger logs every request through zap once it has been served.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request served", fields...)
			return
		}
		logger.Debug("request served", fields...)
	}
}
