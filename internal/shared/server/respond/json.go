package respond

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Emitter writes one server-sent event and flushes it.
type Emitter func(event string, payload any)

// Stream commits a 200 text/event-stream response. The returned Emitter may be
// called from several goroutines.
func Stream(c *gin.Context) Emitter {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	var mu sync.Mutex
	return func(event string, payload any) {
		mu.Lock()
		defer mu.Unlock()
		c.SSEvent(event, payload)
		c.Writer.Flush()
	}
}
