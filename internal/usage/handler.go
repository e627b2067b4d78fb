package usage

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentcv-backend/internal/shared/server/middleware"
	"agentcv-backend/internal/shared/server/respond"
)

// Handler exposes usage endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
}

// RegisterDevRoutes attaches dev-only usage routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage/reset", h.resetUsage)
}

// IdentityFromContext builds the usage identity from what the auth middleware stored.
func IdentityFromContext(c *gin.Context) Identity {
	return Identity{
		UserID: middleware.UserIDFromContext(c),
		Device: middleware.GuestIDFromContext(c),
	}
}

func (h *Handler) getUsage(c *gin.Context) {
	id := IdentityFromContext(c)
	rec, err := h.Svc.GetUsage(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to fetch usage")
		return
	}
	respond.OK(c, usageBody(id, rec))
}

func (h *Handler) resetUsage(c *gin.Context) {
	id := IdentityFromContext(c)
	rec, err := h.Svc.Reset(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to reset usage")
		return
	}
	respond.OK(c, usageBody(id, rec))
}

func usageBody(id Identity, rec UsageRecord) gin.H {
	return gin.H{
		"used":          rec.Used,
		"limit":         rec.Limit,
		"remaining":     rec.Remaining(),
		"lastResetDate": rec.LastResetDate,
		"identityClass": id.Class(),
	}
}

func writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.Is(err, ErrStoreUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "store_unavailable", "usage store unavailable", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
