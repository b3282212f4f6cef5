package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// IdempotencyHeader is the standard HTTP header for idempotency keys
	IdempotencyHeader = "Idempotency-Key"

	// IdempotencyCacheTTL defines how long responses are cached in Redis
	IdempotencyCacheTTL = 24 * time.Hour

	// LockTimeout prevents indefinite locks if a request crashes
	LockTimeout = 10 * time.Second

	// RedisKeyPrefix for namespacing idempotency keys
	RedisKeyPrefix = "idempotency:"

	// LockKeyPrefix for namespacing distributed locks
	LockKeyPrefix = "lock:"
)

// responseWriterWrapper captures the status code and body so a successful
// payout response can be replayed for a retried request.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency caches successful responses per Idempotency-Key in Redis and
// rejects concurrent retries of a key that is still processing. A client that
// retries a payout after a timeout gets the recorded outcome instead of a
// second transfer.
func Idempotency(rdb *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			idempotencyKey := r.Header.Get(IdempotencyHeader)
			if idempotencyKey == "" {
				// No idempotency key provided - process request normally
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := RedisKeyPrefix + idempotencyKey
			lockKey := LockKeyPrefix + idempotencyKey

			cachedResponse, err := rdb.Get(ctx, cacheKey).Result()
			if err == nil {
				logger.Info("idempotency cache hit", zap.String("key", idempotencyKey))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.Write([]byte(cachedResponse))
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", LockTimeout).Result()
			if err != nil {
				logger.Error("idempotency lock acquisition failed", zap.Error(err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !acquired {
				logger.Info("concurrent request for idempotency key", zap.String("key", idempotencyKey))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "conflict",
					"message": "A request with this idempotency key is currently being processed",
				})
				return
			}

			defer func() {
				if err := rdb.Del(ctx, lockKey).Err(); err != nil {
					logger.Warn("failed to release idempotency lock", zap.Error(err))
				}
			}()

			wrapper := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(wrapper, r)

			// Cache successful responses only (2xx status codes)
			if wrapper.statusCode >= 200 && wrapper.statusCode < 300 {
				if err := rdb.Set(ctx, cacheKey, wrapper.body.String(), IdempotencyCacheTTL).Err(); err != nil {
					logger.Warn("failed to cache idempotent response", zap.Error(err))
				}
			}
		})
	}
}
