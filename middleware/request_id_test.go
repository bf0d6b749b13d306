package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/julienmessagingme/newdevis-sub000/pkg/logger"
)

func TestRequestIDGenerated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())

	var ctxID string
	router.POST("/api/attestations/verify", func(c *gin.Context) {
		ctxID, _ = c.Request.Context().Value(logger.RequestIDKey).(string)
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})

	req := httptest.NewRequest("POST", "/api/attestations/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	headerID := w.Header().Get("X-Request-ID")
	if headerID == "" {
		t.Error("Expected X-Request-ID header to be set")
	}
	if ctxID != headerID {
		t.Errorf("Expected request context to carry the same ID, got %q vs header %q", ctxID, headerID)
	}
}

func TestRequestIDKeepsCallerID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/api/analyses/some-id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/analyses/some-id", nil)
	req.Header.Set("X-Request-ID", "verif-7f3a")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "verif-7f3a" {
		t.Errorf("Expected caller-provided ID to survive, got %q", got)
	}
}

func TestGetRequestIDUnset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetRequestID(c) != "" {
		t.Error("Expected empty ID when the middleware did not run")
	}
}
