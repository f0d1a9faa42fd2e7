package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	redisStore "token-launch-gateway/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func replayRouter(t *testing.T, status int) (*gin.Engine, *int32) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var calls int32
	r := gin.New()
	r.POST("/check", Replay(redisStore.NewReplayCache(client), "payment-check", time.Minute, zerolog.Nop()), func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return r, &calls
}

func post(r *gin.Engine, reqID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	if reqID != "" {
		req.Header.Set(HeaderRequestID, reqID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReplay_ServesStoredReply(t *testing.T) {
	r, calls := replayRouter(t, http.StatusOK)

	first := post(r, "update-1")
	second := post(r, "update-1")

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))

	post(r, "update-2")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestReplay_WithoutRequestIDRunsEveryTime(t *testing.T) {
	r, calls := replayRouter(t, http.StatusOK)
	post(r, "")
	post(r, "")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestReplay_ErrorsAreNotStored(t *testing.T) {
	r, calls := replayRouter(t, http.StatusConflict)
	post(r, "update-1")
	w := post(r, "update-1")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Equal(t, http.StatusConflict, w.Code)
}
