package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "frontend-secret"

func closeNotifier(t *testing.T, n *WebhookNotifier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Close(ctx))
}

func TestWebhookNotifier_DeliversInOrderWithSignature(t *testing.T) {
	sig := service.NewHMACSignatureService()
	var (
		mu       sync.Mutex
		received []domain.Milestone
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, sig.Verify(testSecret, SigningString(r.Header.Get(HeaderTimestamp), body), r.Header.Get(HeaderSignature)))
		assert.NotEmpty(t, r.Header.Get(HeaderDeliveryID))

		var p Payload
		require.NoError(t, json.Unmarshal(body, &p))
		assert.Equal(t, "progress", p.Event)
		mu.Lock()
		received = append(received, p.Message.Milestone)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(Config{URL: srv.URL, Secret: testSecret}, sig, srv.Client(), zerolog.Nop())
	want := []domain.Milestone{domain.MilestoneStarted, domain.MilestoneCreatingToken, domain.MilestoneTokenCreated, domain.MilestoneCompleted}
	for _, m := range want {
		require.NoError(t, n.Notify(context.Background(), domain.Message{SessionID: "s1", Kind: domain.MessageProgress, Milestone: m}))
	}
	closeNotifier(t, n)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, received)
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(Config{
		URL:            srv.URL,
		Secret:         testSecret,
		RetryIntervals: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
	}, service.NewHMACSignatureService(), srv.Client(), zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), domain.Message{SessionID: "s1", Kind: domain.MessageTokenCreated}))
	closeNotifier(t, n)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookNotifier_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(Config{URL: srv.URL, RetryIntervals: []time.Duration{time.Millisecond}}, service.NewHMACSignatureService(), srv.Client(), zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), domain.Message{SessionID: "s1", Kind: domain.MessageCreationFailed}))
	closeNotifier(t, n)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type failingClient struct{ calls int32 }

func (f *failingClient) Do(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, errors.New("connection refused")
}

func TestWebhookNotifier_GivesUpAfterRetries(t *testing.T) {
	client := &failingClient{}
	n := NewWebhookNotifier(Config{URL: "http://front.invalid/hook", RetryIntervals: []time.Duration{time.Millisecond, time.Millisecond}}, service.NewHMACSignatureService(), client, zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), domain.Message{SessionID: "s1"}))
	closeNotifier(t, n)

	assert.Equal(t, int32(3), atomic.LoadInt32(&client.calls))
}

func TestWebhookNotifier_NoURLAndClosed(t *testing.T) {
	n := NewWebhookNotifier(Config{}, service.NewHMACSignatureService(), &failingClient{}, zerolog.Nop())
	require.NoError(t, n.Notify(context.Background(), domain.Message{SessionID: "s1"}))
	closeNotifier(t, n)

	err := n.Notify(context.Background(), domain.Message{SessionID: "s1"})
	assert.ErrorIs(t, err, ErrClosed)
}
