package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Degefa-Gomora/evangadiForum1/internal/directory"
	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/internal/room"
	"github.com/Degefa-Gomora/evangadiForum1/internal/service"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/response"
)

// HTTPHandler serves the REST surface: paginated history reads and the
// verified user directory. Live traffic stays on the websocket.
type HTTPHandler struct {
	service service.ChatService
	users   directory.UserDirectory
}

func NewHTTPHandler(svc service.ChatService, users directory.UserDirectory) *HTTPHandler {
	return &HTTPHandler{service: svc, users: users}
}

// RegisterRoutes mounts the REST endpoints. authRequired protects the
// private history route; public history is open.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, authRequired gin.HandlerFunc) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1/chat")
	{
		api.GET("/history/public", h.PublicHistory)
		api.GET("/history/private/:target_user_id", authRequired, h.PrivateHistory)
		api.GET("/users", authRequired, h.ListUsers)
	}
}

func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// PublicHistory returns one page of the shared room. An optional
// `before` parameter (RFC 3339) pages backwards through history.
func (h *HTTPHandler) PublicHistory(c *gin.Context) {
	before, ok := h.parseBefore(c)
	if !ok {
		return
	}

	messages, err := h.service.FetchHistoryPage(c.Request.Context(), room.PublicRoomID(), domain.VisibilityPublic, before)
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, domain.ErrCodeHistoryUnavailable, "history is temporarily unavailable")
		return
	}

	response.Success(c, gin.H{
		"room_id":  room.PublicRoomID(),
		"messages": messages,
	})
}

// PrivateHistory returns one page of the caller's conversation with
// target_user_id. The room resolves from the two participants; callers
// cannot read conversations they are not part of.
func (h *HTTPHandler) PrivateHistory(c *gin.Context) {
	identity := IdentityFrom(c)
	if identity == nil {
		response.Unauthorized(c, "authentication required")
		return
	}

	targetUserID := c.Param("target_user_id")
	roomID, err := room.PrivateRoomID(identity.UserID, targetUserID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParticipants) {
			response.BadRequest(c, "both participants are required")
			return
		}
		response.InternalError(c, "failed to resolve conversation")
		return
	}

	before, ok := h.parseBefore(c)
	if !ok {
		return
	}

	messages, err := h.service.FetchHistoryPage(c.Request.Context(), roomID, domain.VisibilityPrivate, before)
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, domain.ErrCodeHistoryUnavailable, "history is temporarily unavailable")
		return
	}

	response.Success(c, gin.H{
		"room_id":  roomID,
		"messages": messages,
	})
}

// ListUsers returns every verified account for starting conversations.
func (h *HTTPHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListVerifiedUsers(c.Request.Context())
	if err != nil {
		response.InternalError(c, "failed to list users")
		return
	}
	response.Success(c, gin.H{"users": users})
}

func (h *HTTPHandler) parseBefore(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("before")
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.BadRequest(c, "before must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}
