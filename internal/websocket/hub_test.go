package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sammichenVV/translateserver/internal/events"
	"go.uber.org/zap"
)

func startHub(t *testing.T, cfg *HubConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]interface{}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return event
}

func TestHubBroadcast(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{BroadcastTranslations: true, BroadcastTerms: true})
	conn := dial(t, srv, nil)
	waitForClients(t, hub, 1)

	hub.BroadcastEvent(Event{Type: EventTypeTranslation, Data: TranslationEvent{RequestID: "req-1", MaskedTerms: 2}})
	event := readEvent(t, conn)
	if event["type"] != string(EventTypeTranslation) {
		t.Fatalf("event type = %v, want translation", event["type"])
	}
	data := event["data"].(map[string]interface{})
	if data["request_id"] != "req-1" || data["masked_terms"] != float64(2) {
		t.Errorf("event data = %v", data)
	}

	err := hub.NotifyTermsChanged(context.Background(), events.TermsChange{Action: events.ActionAdd, Total: 3})
	if err != nil {
		t.Fatalf("NotifyTermsChanged failed: %v", err)
	}
	event = readEvent(t, conn)
	if event["type"] != string(EventTypeTermsChanged) {
		t.Errorf("event type = %v, want terms_changed", event["type"])
	}

	stats := hub.GetStats()
	if stats.ActiveConnections != 1 || stats.TotalConnections != 1 || stats.TotalMessages < 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHubPing(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{})
	conn := dial(t, srv, nil)
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(ClientMessage{Type: "ping"}); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}
	if event := readEvent(t, conn); event["type"] != string(EventTypePong) {
		t.Errorf("event type = %v, want pong", event["type"])
	}
}

func TestHubDisconnect(t *testing.T) {
	hub, srv := startHub(t, &HubConfig{})
	conn := dial(t, srv, nil)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubStopWithConnectedClient(t *testing.T) {
	baseline := runtime.NumGoroutine()

	hub := NewHub(&HubConfig{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	waitForClients(t, hub, 1)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Upgrades arriving after shutdown are closed instead of blocking.
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial stopped hub: %v", err)
	}
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	var netErr net.Error
	if err == nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		t.Errorf("late connection was not closed: %v", err)
	}
	late.Close()

	conn.Close()
	srv.Close()

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > baseline {
		if time.Now().After(deadline) {
			buf := make([]byte, 1<<16)
			t.Fatalf("goroutines left after stop: %d > %d\n%s",
				runtime.NumGoroutine(), baseline, buf[:runtime.Stack(buf, true)])
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBasicAuth(t *testing.T) {
	_, srv := startHub(t, &HubConfig{Username: "admin", Password: "secret"})

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("admin", "secret")
	dial(t, srv, req.Header)
}

func TestShouldBroadcastEvent(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastTerms: true}, zap.NewNop())

	tests := []struct {
		eventType EventType
		want      bool
	}{
		{EventTypeTranslation, false},
		{EventTypeTermsChanged, true},
		{EventTypeSystemStatus, false},
		{EventTypePong, false},
	}
	for _, tt := range tests {
		if got := hub.shouldBroadcastEvent(tt.eventType); got != tt.want {
			t.Errorf("shouldBroadcastEvent(%s) = %v, want %v", tt.eventType, got, tt.want)
		}
	}
}

func TestClientSubscribed(t *testing.T) {
	c := &Client{}
	if !c.subscribed(EventTypeTranslation) {
		t.Error("client without subscription should receive every event")
	}

	c.Subscription = &SubscriptionRequest{Events: []EventType{EventTypeTermsChanged}}
	if c.subscribed(EventTypeTranslation) || !c.subscribed(EventTypeTermsChanged) {
		t.Error("subscription filter not applied")
	}
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(&HubConfig{AllowedOrigins: []string{"https://dash.example.com"}}, zap.NewNop())

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://dash.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := hub.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
