package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"splitpay/internal/repository"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour

	// A reservation outlives the longest split payment so a retry cannot
	// start a second one while the first still drives the terminal.
	idempotencyPendingTTL = 30 * time.Minute
)

// IdempotencyStore keeps replayable responses keyed by idempotency key.
// Get returns repository.ErrNotFound on a miss.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// cachedResponse stores the response for idempotent requests. A pending entry
// marks a request that is still being processed.
type cachedResponse struct {
	Pending    bool            `json:"pending,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Headers    http.Header     `json:"headers,omitempty"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

var pendingMarker, _ = json.Marshal(cachedResponse{Pending: true})

// IdempotencyMiddleware replays the stored response of a POST that carries an
// Idempotency-Key seen before, and answers 409 while the first request with
// that key is still running. A nil store disables the middleware.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		// Writes must land even if the client hangs up mid-request.
		ctx := context.WithoutCancel(c.Request.Context())
		cacheKey := "idempotency:" + c.FullPath() + ":" + key

		cached, err := getCachedResponse(ctx, store, cacheKey)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Printf("idempotency key=%s lookup failed: %v", key, err)
			c.Next()
			return
		}

		if cached != nil {
			if cached.Pending {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this Idempotency-Key is still in progress"})
				return
			}
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(cached.StatusCode, "application/json", cached.Body)
			c.Abort()
			return
		}

		reserved, err := store.Reserve(ctx, cacheKey, pendingMarker, idempotencyPendingTTL)
		if err != nil {
			log.Printf("idempotency key=%s reserve failed: %v", key, err)
			c.Next()
			return
		}
		if !reserved {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this Idempotency-Key is still in progress"})
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors are not replayed; the reservation is dropped so the
		// client may retry.
		if status := c.Writer.Status(); status >= 200 && status < 500 {
			response := cachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := setCachedResponse(ctx, store, cacheKey, &response, idempotencyTTL); err != nil {
				log.Printf("idempotency key=%s store failed: %v", key, err)
			}
			return
		}
		if err := store.Delete(ctx, cacheKey); err != nil {
			log.Printf("idempotency key=%s release failed: %v", key, err)
		}
	}
}

func getCachedResponse(ctx context.Context, store IdempotencyStore, key string) (*cachedResponse, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

func setCachedResponse(ctx context.Context, store IdempotencyStore, key string, response *cachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return store.Set(ctx, key, data, ttl)
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
