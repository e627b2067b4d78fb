package respond

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorWritesEnvelopeAndAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	reached := false
	router.GET("/x", func(c *gin.Context) {
		Error(c, http.StatusTooManyRequests, "limit_reached", "daily limit reached", gin.H{"remaining": 0})
	}, func(c *gin.Context) {
		reached = true
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	want := `{"error":{"code":"limit_reached","message":"daily limit reached","details":{"remaining":0}}}`
	if resp.Body.String() != want {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if reached {
		t.Fatalf("expected chain to be aborted")
	}
}

func TestStreamWritesEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/events", func(c *gin.Context) {
		emit := Stream(c)
		emit("progress", gin.H{"value": 10})
		emit("result", gin.H{"ok": true})
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/events", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "event:progress\ndata:{\"value\":10}\n\n") {
		t.Fatalf("missing progress event in %q", body)
	}
	if strings.Index(body, "event:progress") > strings.Index(body, "event:result") {
		t.Fatalf("events out of order: %q", body)
	}
}
