package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const messagesFileName = "scheduled_messages.json"

// FileStore keeps the pending message set in a single JSON array file.
// Writes go to a temp file first and are renamed into place so a crash
// mid-write can never truncate the live file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates the storage directory if needed and returns a store
// backed by <dir>/scheduled_messages.json.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileStore{
		path:   filepath.Join(dir, messagesFileName),
		logger: logger.With("component", "store"),
	}, nil
}

// Path returns the location of the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the full message set. A missing file is an empty set; an
// unreadable or corrupt file is logged and also treated as an empty set so
// the scheduler degrades to "no pending messages" instead of failing.
func (f *FileStore) Load() ([]ScheduledMessage, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("message store unreadable, treating as empty", "path", f.path, "error", err)
		}
		return []ScheduledMessage{}, nil
	}

	messages := []ScheduledMessage{}
	err = json.Unmarshal(data, &messages)
	if err != nil {
		f.logger.Warn("message store corrupt, treating as empty", "path", f.path, "error", err)
		return []ScheduledMessage{}, nil
	}

	return messages, nil
}

// Save replaces the entire persisted set. On failure the previous file is
// left untouched.
func (f *FileStore) Save(messages []ScheduledMessage) error {
	if messages == nil {
		messages = []ScheduledMessage{}
	}

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	tmp := f.path + ".tmp"
	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write message store: %w", err)
	}

	err = os.Rename(tmp, f.path)
	if err != nil {
		return fmt.Errorf("failed to replace message store: %w", err)
	}

	return nil
}
