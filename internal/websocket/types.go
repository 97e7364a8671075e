package websocket

import (
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/aegishield/aegishield/internal/detect"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeScan reports a completed scan
	EventTypeScan EventType = "scan"
	// EventTypeRuleChange reports a custom rule mutation
	EventTypeRuleChange EventType = "rule_change"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// ScanEvent summarizes a scan for live dashboards. The scanned text and the
// matched values are deliberately absent.
type ScanEvent struct {
	RequestID    string         `json:"request_id"`
	ClientIP     string         `json:"client_ip"`
	TextLen      int            `json:"text_len"`
	Summary      detect.Summary `json:"summary"`
	AIUsed       bool           `json:"ai_used"`
	CacheHit     bool           `json:"cache_hit"`
	ProcessingMS float64        `json:"processing_ms"`
}

// RuleChangeEvent reports a custom rule create, update, toggle or delete.
type RuleChangeEvent struct {
	Action  string `json:"action"` // "created", "updated", "deleted"
	RuleID  int64  `json:"rule_id"`
	Name    string `json:"name,omitempty"`
	Enabled bool   `json:"enabled"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalScans       int64  `json:"total_scans"`
	TotalDetections  int64  `json:"total_detections"`
	ActiveRules      int    `json:"active_rules"`
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
	Conn         *gws.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
