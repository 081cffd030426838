package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"docvault-backend/internal/shared/telemetry"
)

// Event is the payload delivered to the configured webhook target when an
// ingestion job reaches a terminal state.
type Event struct {
	JobID      string         `json:"jobId"`
	DocumentID string         `json:"documentId"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Notifier delivers events to an external HTTP endpoint. Deliveries are
// queued on a channel and sent by a single background worker so callers
// never block on the network.
type Notifier struct {
	targetURL string
	secret    string
	client    *http.Client
	events    chan Event
	done      chan struct{}
}

// NewNotifier constructs a Notifier and starts its delivery worker. A nil
// Notifier is returned when targetURL is empty; all methods are nil-safe.
func NewNotifier(targetURL, secret string) *Notifier {
	if targetURL == "" {
		return nil
	}
	n := &Notifier{
		targetURL: targetURL,
		secret:    secret,
		client:    &http.Client{Timeout: 10 * time.Second},
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
	}
	go n.run()
	return n
}

// Enqueue queues an event for delivery. Events are dropped with a warning
// when the queue is full; job processing must never stall on a slow target.
func (n *Notifier) Enqueue(event Event) {
	if n == nil {
		return
	}
	select {
	case n.events <- event:
	default:
		telemetry.Warn("webhook.queue_full", map[string]any{
			"job_id": event.JobID,
			"status": event.Status,
		})
	}
}

// Close stops the delivery worker after draining queued events.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	close(n.events)
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)
	for event := range n.events {
		n.deliver(event)
	}
}

func (n *Notifier) deliver(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		telemetry.Error("webhook.encode_failed", map[string]any{
			"job_id": event.JobID,
			"error":  err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.targetURL, bytes.NewReader(body))
	if err != nil {
		telemetry.Error("webhook.request_failed", map[string]any{
			"job_id": event.JobID,
			"error":  err.Error(),
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		telemetry.Warn("webhook.delivery_failed", map[string]any{
			"job_id": event.JobID,
			"error":  err.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		telemetry.Warn("webhook.delivery_rejected", map[string]any{
			"job_id": event.JobID,
			"status": resp.StatusCode,
		})
		return
	}
	telemetry.Info("webhook.delivered", map[string]any{
		"job_id": event.JobID,
		"status": event.Status,
	})
}

// Sign computes the hex-encoded HMAC-SHA256 signature for a payload.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
