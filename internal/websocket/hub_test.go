package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func receive(t *testing.T, ch chan []byte) Event {
	t.Helper()
	select {
	case body := <-ch:
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	return Event{}
}

func TestPublishReachesOnlyTheCompany(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	acme, other := uuid.New(), uuid.New()
	a := &Client{Hub: hub, CompanyID: acme, Send: make(chan []byte, 4)}
	b := &Client{Hub: hub, CompanyID: other, Send: make(chan []byte, 4)}
	hub.register <- a
	hub.register <- b

	hub.Publish(acme, "booking.created", map[string]string{"ref": "BK-1"})

	ev := receive(t, a.Send)
	if ev.Type != "booking.created" {
		t.Fatalf("type %q", ev.Type)
	}

	// A second event for the other company proves the first was not fanned out to it.
	hub.Publish(other, "invoice.created", nil)
	if ev := receive(t, b.Send); ev.Type != "invoice.created" {
		t.Fatalf("company b got %q first", ev.Type)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := &Client{Hub: hub, CompanyID: uuid.New(), Send: make(chan []byte, 1)}
	hub.register <- c
	hub.unregister <- c

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestStoppedHubReleasesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := &Client{Hub: hub, CompanyID: uuid.New(), Send: make(chan []byte, 1)}
	if !hub.join(c) {
		t.Fatal("join refused while running")
	}
	cancel()
	<-stopped

	if _, ok := <-c.Send; ok {
		t.Fatal("expected send channel closed on shutdown")
	}

	done := make(chan bool, 1)
	go func() {
		hub.leave(c)
		done <- hub.join(&Client{Hub: hub, CompanyID: uuid.New(), Send: make(chan []byte, 1)})
	}()
	select {
	case joined := <-done:
		if joined {
			t.Fatal("join accepted after shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("register/unregister blocked after shutdown")
	}
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub("https://app.example.com/")
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"http://api.example.com:8080", true}, // same host as the request
		{"https://evil.example.net", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://api.example.com:8080/ws", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		if got := hub.checkOrigin(req); got != tc.want {
			t.Errorf("origin %q: got %v, want %v", tc.origin, got, tc.want)
		}
	}

	if !NewHub("*").checkOrigin(originRequest("https://anything.test")) {
		t.Error("wildcard origin rejected")
	}
}

func originRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)
	req.Header.Set("Origin", origin)
	return req
}
