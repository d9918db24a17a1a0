// Package events contains the websocket message contracts of the portal.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeReportingRefreshed announces that cached report data was dropped.
	MessageTypeReportingRefreshed MessageType = "reporting:refreshed"

	// MessageTypeExpectedRefreshed announces a scheduled reload of the movement configuration.
	MessageTypeExpectedRefreshed MessageType = "reporting:expected_refreshed"

	// Connection messages
	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ReportingRefreshed is the payload of MessageTypeReportingRefreshed.
// An empty Month means every cached month was dropped.
type ReportingRefreshed struct {
	Month    string `json:"month,omitempty"`
	Expected bool   `json:"expected_index"`
	Reason   string `json:"reason"`
}

// ExpectedRefreshed is the payload of MessageTypeExpectedRefreshed.
type ExpectedRefreshed struct {
	Routes int    `json:"routes"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// ConnectedMessage is sent to a client right after the upgrade.
type ConnectedMessage struct {
	ClientID string `json:"client_id"`
	Version  string `json:"version"`
}
