package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agentcv-backend/internal/shared/auth"
	"agentcv-backend/internal/shared/server/respond"
)

const (
	userIDKey  = "userId"
	guestIDKey = "guestId"
	isGuestKey = "isGuest"
)

// TokenVerifier turns a bearer token into claims.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth validates bearer tokens or guest headers and stores identity in context.
// A bearer token yields an authenticated user id; X-Guest-Id yields an
// anonymous device scope. A request carrying neither is rejected with 401;
// the server has no shared anonymous slot.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		switch c.Request.URL.Path {
		case "/api/v1/health", "/metrics":
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") || verifier == nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			SetIdentity(c, claims.Sub, strings.TrimSpace(c.GetHeader("X-Guest-Id")))
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		SetIdentity(c, "", guestID)
		c.Next()
	}
}

// SetIdentity stores identity values the way Auth does.
func SetIdentity(c *gin.Context, userID, guestID string) {
	if userID != "" {
		c.Set(userIDKey, userID)
	}
	if guestID != "" {
		c.Set(guestIDKey, guestID)
	}
	c.Set(isGuestKey, userID == "")
}

// UserIDFromContext fetches the authenticated user ID, or "" for guests.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

// GuestIDFromContext fetches the guest device id sent in X-Guest-Id.
func GuestIDFromContext(c *gin.Context) string {
	return stringFromContext(c, guestIDKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
