package webhook

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotifierDeliversSignedEvent(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		received <- r
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(srv.URL, "top-secret")
	n.Enqueue(Event{
		JobID:      "job-1",
		DocumentID: "doc-1",
		Status:     "completed",
		Result:     map[string]any{"pages": 3},
		OccurredAt: time.Now().UTC(),
	})
	n.Close()

	select {
	case r := <-received:
		body := <-bodies
		if r.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		want := Sign("top-secret", body)
		got := r.Header.Get("X-Webhook-Signature")
		if !hmac.Equal([]byte(want), []byte(got)) {
			t.Fatalf("bad signature: got %s want %s", got, want)
		}
		var event Event
		if err := json.Unmarshal(body, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.JobID != "job-1" || event.Status != "completed" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event never delivered")
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	n.Enqueue(Event{JobID: "job-1"})
	n.Close()
}

func TestNotifierDisabledWithoutTarget(t *testing.T) {
	if n := NewNotifier("", "secret"); n != nil {
		t.Fatalf("expected nil notifier when target is empty")
	}
}
