package server

import (
	"github.com/gin-gonic/gin"

	"agentcv-backend/internal/shared/server/respond"
	"agentcv-backend/internal/usage"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	id := usage.IdentityFromContext(c)
	response := gin.H{
		"identityClass": id.Class(),
	}
	if id.UserID != "" {
		response["userId"] = id.UserID
	}
	if id.Device != "" {
		response["guestId"] = id.Device
	}
	respond.OK(c, response)
}
