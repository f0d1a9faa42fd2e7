// Package notify delivers session messages back to the chat front-end.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRetryIntervals are the waits between delivery attempts.
var DefaultRetryIntervals = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
}

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notifier closed")

// Header names set on every delivery.
const (
	HeaderSignature  = "X-Signature"
	HeaderTimestamp  = "X-Timestamp"
	HeaderDeliveryID = "X-Delivery-ID"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Payload is the JSON body posted to the front-end.
type Payload struct {
	DeliveryID string         `json:"delivery_id"`
	Event      string         `json:"event"`
	Message    domain.Message `json:"message"`
}

// Config configures a WebhookNotifier.
type Config struct {
	URL            string
	Secret         string
	QueueSize      int
	RetryIntervals []time.Duration
}

// WebhookNotifier posts messages to a single front-end URL from one worker,
// so messages arrive in submission order. A failing delivery is retried
// before later messages are sent.
type WebhookNotifier struct {
	cfg    Config
	sigSvc ports.SignatureService
	client HTTPClient
	log    zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan domain.Message
	done   chan struct{}
}

// NewWebhookNotifier creates the notifier and starts its worker.
func NewWebhookNotifier(cfg Config, sigSvc ports.SignatureService, client HTTPClient, log zerolog.Logger) *WebhookNotifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.RetryIntervals == nil {
		cfg.RetryIntervals = DefaultRetryIntervals
	}
	n := &WebhookNotifier{
		cfg:    cfg,
		sigSvc: sigSvc,
		client: client,
		log:    log,
		queue:  make(chan domain.Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues msg for delivery. It blocks while the queue is full.
func (n *WebhookNotifier) Notify(ctx context.Context, msg domain.Message) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	if n.cfg.URL == "" {
		n.log.Info().Str("session_id", msg.SessionID).Str("kind", string(msg.Kind)).Msg("notify: no front-end url, message dropped")
		return nil
	}
	select {
	case n.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits until queued ones are delivered
// or ctx ends.
func (n *WebhookNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *WebhookNotifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		n.deliverWithRetries(msg)
	}
}

func (n *WebhookNotifier) deliverWithRetries(msg domain.Message) {
	payload := Payload{
		DeliveryID: uuid.NewString(),
		Event:      string(msg.Kind),
		Message:    msg,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error().Err(err).Str("session_id", msg.SessionID).Msg("notify: failed to marshal payload")
		return
	}
	log := n.log.With().Str("session_id", msg.SessionID).Str("kind", string(msg.Kind)).Str("delivery_id", payload.DeliveryID).Logger()

	for attempt := 0; attempt <= len(n.cfg.RetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(n.cfg.RetryIntervals[attempt-1])
		}
		status, err := n.post(payload.DeliveryID, body)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("notify: delivery failed")
			continue
		}
		if status >= 200 && status < 300 {
			log.Debug().Int("attempt", attempt+1).Msg("notify: delivered")
			return
		}
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			log.Error().Int("status", status).Msg("notify: rejected by front-end, not retrying")
			return
		}
		log.Warn().Int("attempt", attempt+1).Int("status", status).Msg("notify: non-2xx response, retrying")
	}
	log.Error().Msg("notify: all retry attempts exhausted")
}

func (n *WebhookNotifier) post(deliveryID string, body []byte) (int, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req, err := http.NewRequest(http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderDeliveryID, deliveryID)
	req.Header.Set(HeaderSignature, n.sigSvc.Sign(n.cfg.Secret, SigningString(ts, body)))

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// SigningString is what the front-end recomputes to verify a delivery.
func SigningString(timestamp string, body []byte) string {
	return timestamp + "." + string(body)
}
