package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kindnest/kindnest-api/internal/donations"
	"github.com/kindnest/kindnest-api/internal/scheduling"
	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/auth"
	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/metrics"
	"github.com/kindnest/kindnest-api/pkg/models"
	"github.com/kindnest/kindnest-api/pkg/notify"
)

// Context keys set by the auth middlewares.
const (
	ctxSubject = "subject"
	ctxRole    = "role"
	ctxService = "service"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	Store     *database.Store
	Auth      *auth.Authenticator
	Donations *donations.Service
	Schedules *scheduling.Service
	Notifier  *notify.Dispatcher
	Metrics   *metrics.Metrics
	Log       *slog.Logger

	// AdminSecretCode must accompany self-registration as admin. Empty
	// disables admin self-registration.
	AdminSecretCode string
}

func (h *Handler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func bearer(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	// Strip "Bearer " if present
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware verifies the session token and records who is calling.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := h.Auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ctxSubject, claims.Subject)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRole lets through only callers holding one of roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
}

// ServiceKeyMiddleware verifies an HMAC service key for internal callers.
func (h *Handler) ServiceKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearer(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Service key required"})
			return
		}
		name, err := h.Auth.VerifyServiceKey(key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid service key signature"})
			return
		}
		c.Set(ctxService, name)
		c.Next()
	}
}

func actor(c *gin.Context) scheduling.Actor {
	return scheduling.Actor{Role: c.GetString(ctxRole), ID: c.GetString(ctxSubject)}
}

func isAdmin(c *gin.Context) bool { return c.GetString(ctxRole) == models.RoleAdmin }

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:       http.StatusBadRequest,
	apperr.KindCapacityExceeded: http.StatusConflict,
	apperr.KindForbidden:        http.StatusForbidden,
	apperr.KindAlreadyAssigned:  http.StatusConflict,
	apperr.KindUnverifiedCode:   http.StatusConflict,
	apperr.KindNotFound:         http.StatusNotFound,
	apperr.KindConflict:         http.StatusConflict,
}

// respondError writes err as {"error": ...} with the status for its kind.
// Unclassified errors are logged and hidden behind a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if code, ok := statusByKind[ae.Kind]; ok {
			c.JSON(code, gin.H{"error": apperr.Message(ae)})
			return
		}
	}
	h.log().Error("request failed",
		"method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
