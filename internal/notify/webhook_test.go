package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/hookroute/internal/config"
	"github.com/ppiankov/hookroute/internal/model"
)

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &called
}

func TestNotifyMatchesEvents(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)

	n := New([]config.Webhook{{URL: srv.URL, Events: []string{EventBlocked}}}, time.Second, nil)
	n.Notify(Event{Type: EventBlocked, Handler: "security-auditor"})
	n.Notify(Event{Type: EventRejected, Handler: "lint-fixer"})

	if !n.Wait(2 * time.Second) {
		t.Fatal("sends did not finish")
	}
	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestNotifyWildcardAndMultipleHooks(t *testing.T) {
	srv1, called1 := countingServer(t, http.StatusOK)
	srv2, called2 := countingServer(t, http.StatusOK)

	n := New([]config.Webhook{
		{URL: srv1.URL, Events: []string{"*"}},
		{URL: srv2.URL, Events: []string{EventRejected, EventBlocked}},
	}, time.Second, nil)
	n.Notify(Event{Type: EventRejected})
	n.Wait(2 * time.Second)

	if called1.Load() != 1 || called2.Load() != 1 {
		t.Errorf("expected one call per hook, got %d and %d", called1.Load(), called2.Load())
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	n := New(nil, 0, nil)
	if n != nil {
		t.Fatal("expected nil notifier without hooks")
	}
	n.Notify(Event{Type: EventBlocked})
	n.Initialized(true, "/tmp")
	if !n.Wait(time.Millisecond) {
		t.Error("nil notifier should report done")
	}
}

func TestInitializedOnlyOnFirstRun(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New([]config.Webhook{{URL: srv.URL, Events: []string{EventInitialized}}}, time.Second, nil)
	n.Initialized(false, "/repo")
	n.Wait(time.Second)
	if got.Load() != nil {
		t.Fatal("no event expected when not first run")
	}

	n.Initialized(true, "/repo")
	n.Wait(2 * time.Second)
	var ev Event
	if err := json.Unmarshal([]byte(got.Load().(string)), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventInitialized || ev.Timestamp == "" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := config.Webhook{URL: srv.URL}
	n := New([]config.Webhook{hook}, time.Second, nil)
	n.backoff = time.Millisecond

	if err := n.Send(context.Background(), hook, Event{Type: EventBlocked}); err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	srv, called := countingServer(t, http.StatusBadRequest)

	hook := config.Webhook{URL: srv.URL}
	n := New([]config.Webhook{hook}, time.Second, nil)
	if err := n.Send(context.Background(), hook, Event{Type: EventBlocked}); err == nil {
		t.Error("expected error on 400, got nil")
	}
	if called.Load() != 1 {
		t.Errorf("expected 1 attempt (no retry on 4xx), got %d", called.Load())
	}
}

func TestHeadersSent(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := config.Webhook{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer x"}}
	n := New([]config.Webhook{hook}, time.Second, nil)
	if err := n.Send(context.Background(), hook, Event{Type: EventBlocked}); err != nil {
		t.Fatal(err)
	}
	if auth.Load() != "Bearer x" {
		t.Errorf("header not sent, got %v", auth.Load())
	}
}

func TestFormatSlack(t *testing.T) {
	data, err := FormatPayload("slack", Event{Type: EventBlocked, Handler: "security-auditor", Usage: 97})
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["text"] != "hookroute: blocked" {
		t.Errorf("text: got %v", payload["text"])
	}
	if _, ok := payload["blocks"]; !ok {
		t.Error("slack payload should have blocks")
	}
}

func TestForOutcome(t *testing.T) {
	if typ, ok := ForOutcome(model.OutcomeBlocked); !ok || typ != EventBlocked {
		t.Errorf("blocked: got %q %v", typ, ok)
	}
	if typ, ok := ForOutcome(model.OutcomeRejected); !ok || typ != EventRejected {
		t.Errorf("rejected: got %q %v", typ, ok)
	}
	if _, ok := ForOutcome(model.OutcomeFallback); ok {
		t.Error("fallback should not notify")
	}
}
