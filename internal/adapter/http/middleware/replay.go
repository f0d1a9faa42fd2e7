package middleware

import (
	"bytes"
	"net/http"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the front-end's update id.
const HeaderRequestID = "X-Request-ID"

// HeaderReplayed marks a reply served from the replay cache.
const HeaderReplayed = "X-Replayed"

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Replay answers a redelivered request with the stored reply of the first
// delivery. Requests without X-Request-ID pass through. Only 2xx replies
// are stored.
func Replay(cache ports.IdempotencyCache, scope string, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			c.Next()
			return
		}
		key := domain.BuildIdempotencyKey(scope, reqID)

		cached, err := cache.Get(c.Request.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("replay cache read failed, running request")
		} else if cached != nil {
			c.Header(HeaderReplayed, "true")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if status := w.Status(); status < 200 || status >= 300 {
			return
		}
		if err := cache.Set(c.Request.Context(), key, w.buf.Bytes(), ttl); err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("replay cache write failed")
		}
	}
}
