package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeTranslation reports a completed translation request
	EventTypeTranslation EventType = "translation"
	// EventTypeTermsChanged reports a committed term dictionary mutation
	EventTypeTermsChanged EventType = "terms_changed"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// TranslationEvent summarizes one translate call. Text is never included.
type TranslationEvent struct {
	RequestID    string  `json:"request_id"`
	ClientIP     string  `json:"client_ip"`
	InputChars   int     `json:"input_chars"`
	OutputChars  int     `json:"output_chars"`
	MaskedTerms  int     `json:"masked_terms"`
	Anomalies    int     `json:"anomalies"`
	Collision    bool    `json:"collision,omitempty"`
	ProcessingMS float64 `json:"processing_ms"`
	Error        string  `json:"error,omitempty"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	Terms            int    `json:"terms"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}

// subscribed reports whether the client wants events of type t. Clients
// without a subscription receive everything.
func (c *Client) subscribed(t EventType) bool {
	if c.Subscription == nil || len(c.Subscription.Events) == 0 {
		return true
	}
	for _, e := range c.Subscription.Events {
		if e == t {
			return true
		}
	}
	return false
}
