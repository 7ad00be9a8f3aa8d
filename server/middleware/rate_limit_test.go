package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestRateLimitMiddleware проверяет отсечку запросов поверх лимита
func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimitMiddleware(1, 2))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	// Burst 2: первые два проходят, остальные отбрасываются
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("first two requests must pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests || statuses[3] != http.StatusTooManyRequests {
		t.Errorf("requests above burst must get 429, got %v", statuses)
	}
}

// TestRequestIDMiddleware проверяет генерацию и проброс request ID
func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromGin(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	generated := w.Header().Get("X-Request-ID")
	if generated == "" {
		t.Fatal("expected generated X-Request-ID header")
	}
	if w.Body.String() != generated {
		t.Errorf("handler saw request ID %q, header carries %q", w.Body.String(), generated)
	}

	// Входящий заголовок сохраняется
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") != "fixed-id" {
		t.Errorf("incoming request ID must be preserved, got %q", w.Header().Get("X-Request-ID"))
	}
}
