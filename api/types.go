// Package api holds the wire types shared by the HTTP handlers and the CLI client.
package api

import "encoding/json"

// Error is the structured error body returned by every failing API operation.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HealthStatus describes the result of a health probe.
type HealthStatus string

// Health statuses
const (
	Ok     HealthStatus = "ok"
	Failed HealthStatus = "failed"
)

// Health is the health check response body.
type Health struct {
	Status HealthStatus `json:"status"`
}

// NewMessage is the payload for scheduling a message.
// A nil/omitted Recipients list means broadcast to all known contacts.
type NewMessage struct {
	Title       string   `json:"title" validate:"required"`
	Content     string   `json:"content" validate:"required"`
	ScheduledAt int64    `json:"scheduledAt" validate:"required,gt=0"`
	Recipients  []string `json:"recipients,omitempty"`
	JSONPayload bool     `json:"jsonPayload,omitempty"`
}

// Message is the API view of a pending scheduled message.
// The reset word is redacted before a message leaves the server.
type Message struct {
	ID                      string   `json:"id"`
	Title                   string   `json:"title"`
	Content                 string   `json:"content"`
	ScheduledAt             int64    `json:"scheduledAt"`
	Recipients              []string `json:"recipients,omitempty"`
	JSONPayload             bool     `json:"jsonPayload"`
	DeadMansSwitch          bool     `json:"deadMansSwitch"`
	OriginalIntervalSeconds int64    `json:"originalIntervalSeconds,omitempty"`
}

// ArmRequest is the payload for arming a dead man's switch.
// Interval uses Go duration syntax (e.g. 30m, 25h). An empty Contact
// broadcasts the switch to all known contacts.
type ArmRequest struct {
	Interval  string `json:"interval" validate:"required"`
	Message   string `json:"message" validate:"required"`
	ResetWord string `json:"resetWord" validate:"required"`
	Contact   string `json:"contact,omitempty"`
}

// ArmResult reports what arming a switch scheduled.
type ArmResult struct {
	Scheduled int   `json:"scheduled"`
	TriggerAt int64 `json:"triggerAt"`
}

// InboundEvent is a decoded inbound chat message handed to the server by an
// external event feed. Raw carries the undecoded event payload for debugging.
type InboundEvent struct {
	ContactID string          `json:"contactId" validate:"required"`
	Text      string          `json:"text"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// DeleteMessagesRequest selects pending messages for deletion by id.
type DeleteMessagesRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// DeleteResult reports how many messages a delete operation removed.
type DeleteResult struct {
	Deleted int `json:"deleted"`
}

// Ack acknowledges an accepted request that has no other response body.
type Ack struct {
	Status string `json:"status"`
}
