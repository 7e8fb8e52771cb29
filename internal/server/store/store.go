// Package store persists the pending scheduled message set as a single JSON
// document, read and written wholesale.
package store

// ScheduledMessage is the sole persisted entity: a message waiting to be sent.
// Messages belonging to a dead man's switch additionally carry the switch's
// reset word and original interval so the switch can be reconstructed from any
// one of its members.
type ScheduledMessage struct {
	ID                      string   `json:"id"`
	Title                   string   `json:"title"`
	Content                 string   `json:"content"`
	ScheduledAt             int64    `json:"scheduled_timestamp"`
	Recipients              []string `json:"recipients"`
	JSONPayload             bool     `json:"json_payload"`
	DeadMansSwitch          bool     `json:"dead_mans_switch"`
	ResetWord               string   `json:"reset_word"`
	OriginalIntervalSeconds int64    `json:"original_interval_seconds"`
}

// Broadcast reports whether the message targets all known contacts rather
// than a specific recipient list. A nil Recipients slice is the broadcast
// sentinel and serializes as JSON null.
func (m ScheduledMessage) Broadcast() bool {
	return m.Recipients == nil
}

// Store defines the behaviors required for persisting scheduled messages.
// The message set is accessed as an atomic snapshot: full read, full write.
// Callers are responsible for serializing Load/Save cycles; the scheduler
// owns the single mutex spanning every read-modify-write.
type Store interface {
	// Load returns every pending message. Missing or corrupt storage is
	// treated as an empty set, never an error.
	Load() ([]ScheduledMessage, error)
	// Save atomically replaces the entire persisted set.
	Save([]ScheduledMessage) error
}
