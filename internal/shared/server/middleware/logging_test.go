package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"agentcv-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	prev := telemetry.L()
	telemetry.SetLogger(zap.New(core))
	t.Cleanup(func() { telemetry.SetLogger(prev) })

	router := gin.New()
	router.Use(RequestID(), Auth(newVerifier(t)), Logging())
	router.GET("/test", func(c *gin.Context) {
		c.Set("submissionId", "sub-1")
		c.Set("submissionState", "succeeded")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Guest-Id", "guest1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	entries := logs.FilterMessage("request.complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	payload := entries[0].ContextMap()

	required := []string{"request_id", "user_id", "guest_id", "submission_id", "submission_state", "duration_ms", "status"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["guest_id"] != "guest1" {
		t.Fatalf("unexpected guest_id: %v", payload["guest_id"])
	}
	if payload["submission_id"] != "sub-1" {
		t.Fatalf("unexpected submission_id: %v", payload["submission_id"])
	}
	if payload["request_id"] != resp.Header().Get("X-Request-Id") {
		t.Fatalf("request_id %v does not match header", payload["request_id"])
	}
}
