package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpay/internal/clock"
	"splitpay/internal/middleware"
	"splitpay/internal/repository/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func post(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/split-payments", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware_ReplaysResponse(t *testing.T) {
	store := memory.NewIdempotencyStore(clock.NewFake(time.Now()))
	var calls int32

	r := gin.New()
	r.Use(middleware.IdempotencyMiddleware(store))
	r.POST("/v1/split-payments", func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{"call": n})
	})

	first := post(r, "key-1")
	second := post(r, "key-1")

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	post(r, "key-2")
	post(r, "")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_ConflictWhileInFlight(t *testing.T) {
	store := memory.NewIdempotencyStore(clock.NewFake(time.Now()))

	r := gin.New()
	r.Use(middleware.IdempotencyMiddleware(store))

	var inner *httptest.ResponseRecorder
	r.POST("/v1/split-payments", func(c *gin.Context) {
		// A retry arrives while this request is still running.
		if inner == nil {
			inner = post(r, "key-1")
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	outer := post(r, "key-1")

	assert.Equal(t, http.StatusOK, outer.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
}

func TestIdempotencyMiddleware_ServerErrorsAreNotReplayed(t *testing.T) {
	store := memory.NewIdempotencyStore(clock.NewFake(time.Now()))
	var calls int32

	r := gin.New()
	r.Use(middleware.IdempotencyMiddleware(store))
	r.POST("/v1/split-payments", func(c *gin.Context) {
		if atomic.AddInt32(&calls, 1) == 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	assert.Equal(t, http.StatusInternalServerError, post(r, "key-1").Code)
	assert.Equal(t, http.StatusOK, post(r, "key-1").Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_NilStorePassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(middleware.IdempotencyMiddleware(nil))
	r.POST("/v1/split-payments", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	assert.Equal(t, http.StatusAccepted, post(r, "key-1").Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORSMiddleware([]string{"https://pos.example.com"}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://pos.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://pos.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://pos.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")
}
