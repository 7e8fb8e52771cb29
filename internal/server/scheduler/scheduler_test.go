package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vigil-switch/vigil/internal/server/notify"
	"github.com/vigil-switch/vigil/internal/server/store"
)

// MockNotifier satisfies the notify.Notifier interface
type MockNotifier struct {
	SendToContactFunc   func(ctx context.Context, contactID, text string) error
	BroadcastFunc       func(ctx context.Context, text string) (notify.BroadcastResult, error)
	ResolveContactsFunc func(ctx context.Context) ([]notify.Contact, error)

	SentTo        []string
	SentTexts     []string
	BroadcastSent []string
}

func (m *MockNotifier) SendToContact(ctx context.Context, contactID, text string) error {
	m.SentTo = append(m.SentTo, contactID)
	m.SentTexts = append(m.SentTexts, text)
	if m.SendToContactFunc != nil {
		return m.SendToContactFunc(ctx, contactID, text)
	}
	return nil
}

func (m *MockNotifier) Broadcast(ctx context.Context, text string) (notify.BroadcastResult, error) {
	m.BroadcastSent = append(m.BroadcastSent, text)
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, text)
	}
	return notify.BroadcastResult{Delivered: []string{"everyone"}}, nil
}

func (m *MockNotifier) ResolveContacts(ctx context.Context) ([]notify.Contact, error) {
	if m.ResolveContactsFunc != nil {
		return m.ResolveContactsFunc(ctx)
	}
	return []notify.Contact{
		{ID: "1", Name: "alice"},
		{ID: "2", Name: "bob"},
	}, nil
}

func setupTestScheduler(t *testing.T) (*Scheduler, *MockNotifier) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fileStore, err := store.NewFileStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	notifier := &MockNotifier{}
	return New(fileStore, notifier, nil, logger), notifier
}

func TestAddMessage(t *testing.T) {
	s, _ := setupTestScheduler(t)

	t.Run("persists a future message", func(t *testing.T) {
		id, err := s.AddMessage(NewMessage{
			Title:       "Reminder",
			Content:     "hello",
			ScheduledAt: time.Now().Add(time.Hour),
			Recipients:  []string{"alice"},
		})
		if err != nil {
			t.Fatalf("failed to add message: %v", err)
		}
		if !strings.HasPrefix(id, "msg_") {
			t.Errorf("expected msg_ prefix, got %s", id)
		}

		messages, err := s.ListPending()
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(messages) != 1 || messages[0].ID != id {
			t.Errorf("expected 1 pending message with id %s, got %+v", id, messages)
		}
	})

	t.Run("rejects a past scheduled time", func(t *testing.T) {
		_, err := s.AddMessage(NewMessage{
			Title:       "Too late",
			Content:     "x",
			ScheduledAt: time.Now().Add(-time.Minute),
		})
		assert.ErrorIs(t, err, ErrNotFuture)
	})

	t.Run("lowercases the reset word", func(t *testing.T) {
		id, err := s.AddMessage(NewMessage{
			Title:          "Dead Man's Switch - Triggered",
			Content:        "payload",
			ScheduledAt:    time.Now().Add(time.Hour),
			DeadMansSwitch: true,
			ResetWord:      "Apple",
		})
		if err != nil {
			t.Fatalf("failed to add message: %v", err)
		}

		messages, _ := s.ListPending()
		for _, m := range messages {
			if m.ID == id && m.ResetWord != "apple" {
				t.Errorf("expected lowercased reset word, got %q", m.ResetWord)
			}
		}
	})
}

func TestDeleteByResetWord(t *testing.T) {
	s, _ := setupTestScheduler(t)

	future := time.Now().Add(time.Hour)
	for _, word := range []string{"apple", "apple", "banana"} {
		_, err := s.AddMessage(NewMessage{
			Title:          "t",
			Content:        "c",
			ScheduledAt:    future,
			DeadMansSwitch: true,
			ResetWord:      word,
		})
		if err != nil {
			t.Fatalf("failed to add message: %v", err)
		}
	}
	// A plain message sharing no reset word must survive.
	_, err := s.AddMessage(NewMessage{Title: "plain", Content: "c", ScheduledAt: future})
	if err != nil {
		t.Fatalf("failed to add message: %v", err)
	}

	t.Run("deletes every message sharing the word, case-insensitively", func(t *testing.T) {
		deleted, err := s.DeleteByResetWord("APPLE")
		assert.NoError(t, err)
		assert.Equal(t, 2, deleted)

		messages, _ := s.ListPending()
		assert.Len(t, messages, 2)
	})

	t.Run("second delete is a zero-count success", func(t *testing.T) {
		deleted, err := s.DeleteByResetWord("apple")
		assert.NoError(t, err)
		assert.Equal(t, 0, deleted)
	})

	t.Run("never touches non-switch messages", func(t *testing.T) {
		deleted, err := s.DeleteByResetWord("banana")
		assert.NoError(t, err)
		assert.Equal(t, 1, deleted)

		messages, _ := s.ListPending()
		if assert.Len(t, messages, 1) {
			assert.Equal(t, "plain", messages[0].Title)
		}
	})
}

func TestDeleteByIDs(t *testing.T) {
	s, _ := setupTestScheduler(t)

	future := time.Now().Add(time.Hour)
	id1, _ := s.AddMessage(NewMessage{Title: "a", Content: "c", ScheduledAt: future})
	id2, _ := s.AddMessage(NewMessage{Title: "b", Content: "c", ScheduledAt: future})

	deleted, err := s.DeleteByIDs([]string{id1, "msg_unknown"})
	assert.NoError(t, err)
	assert.Equal(t, 1, deleted)

	messages, _ := s.ListPending()
	if assert.Len(t, messages, 1) {
		assert.Equal(t, id2, messages[0].ID)
	}
}

func TestProcessDue(t *testing.T) {
	base := time.Now()

	t.Run("delivers only due messages", func(t *testing.T) {
		s, notifier := setupTestScheduler(t)
		s.now = func() time.Time { return base }

		dueID, _ := s.AddMessage(NewMessage{
			Title:       "due",
			Content:     "now",
			ScheduledAt: base.Add(time.Minute),
		})
		_, _ = s.AddMessage(NewMessage{
			Title:       "future",
			Content:     "later",
			ScheduledAt: base.Add(time.Hour),
		})

		// Advance past the first message only.
		s.now = func() time.Time { return base.Add(2 * time.Minute) }
		s.processDue()

		assert.Len(t, notifier.BroadcastSent, 1)

		messages, _ := s.ListPending()
		if assert.Len(t, messages, 1) {
			assert.Equal(t, "future", messages[0].Title)
			assert.NotEqual(t, dueID, messages[0].ID)
		}
	})

	t.Run("sends to named recipients resolved by contact name", func(t *testing.T) {
		s, notifier := setupTestScheduler(t)
		s.now = func() time.Time { return base }

		_, _ = s.AddMessage(NewMessage{
			Title:       "direct",
			Content:     "hi",
			ScheduledAt: base.Add(time.Minute),
			Recipients:  []string{"bob", "ghost"},
		})

		s.now = func() time.Time { return base.Add(2 * time.Minute) }
		s.processDue()

		// bob resolves to contact id 2; ghost is unknown and dropped.
		assert.Equal(t, []string{"2"}, notifier.SentTo)
		assert.Empty(t, notifier.BroadcastSent)

		messages, _ := s.ListPending()
		assert.Empty(t, messages)
	})

	t.Run("does nothing when no message is due", func(t *testing.T) {
		s, notifier := setupTestScheduler(t)
		s.now = func() time.Time { return base }

		_, _ = s.AddMessage(NewMessage{
			Title:       "future",
			Content:     "later",
			ScheduledAt: base.Add(time.Hour),
		})

		s.processDue()

		assert.Empty(t, notifier.BroadcastSent)
		assert.Empty(t, notifier.SentTo)

		messages, _ := s.ListPending()
		assert.Len(t, messages, 1)
	})
}

func TestRenderOutbound(t *testing.T) {
	s, _ := setupTestScheduler(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return at }

	t.Run("plain text layout", func(t *testing.T) {
		text := s.renderOutbound(store.ScheduledMessage{Title: "Hello", Content: "World"})
		assert.Contains(t, text, "Hello\n\nWorld\n\nSent: ")
	})

	t.Run("json payload layout", func(t *testing.T) {
		text := s.renderOutbound(store.ScheduledMessage{Title: "Hello", Content: "World", JSONPayload: true})

		payload := struct {
			Title         string `json:"title"`
			Content       string `json:"content"`
			SentTimestamp int64  `json:"sent_timestamp"`
		}{}
		err := json.Unmarshal([]byte(text), &payload)
		assert.NoError(t, err)
		assert.Equal(t, "Hello", payload.Title)
		assert.Equal(t, at.Unix(), payload.SentTimestamp)
	})
}

func TestNextSleep(t *testing.T) {
	// Whole-second base since scheduled times have second granularity.
	base := time.Unix(1700000000, 0)

	tests := []struct {
		name     string
		deltas   []time.Duration
		expected time.Duration
	}{
		{
			name:     "empty store uses default poll interval",
			deltas:   nil,
			expected: defaultPollInterval,
		},
		{
			name:     "nearest possible message sleeps the minimum",
			deltas:   []time.Duration{time.Second},
			expected: minSleep,
		},
		{
			name:     "distant message clamps to maximum",
			deltas:   []time.Duration{2 * time.Hour},
			expected: maxSleep,
		},
		{
			name:     "in-range delta used as-is",
			deltas:   []time.Duration{90 * time.Second, 4 * time.Hour},
			expected: 90 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupTestScheduler(t)
			s.now = func() time.Time { return base }

			for _, d := range tt.deltas {
				_, err := s.AddMessage(NewMessage{
					Title:       "t",
					Content:     "c",
					ScheduledAt: base.Add(d),
				})
				if err != nil {
					t.Fatalf("failed to add message: %v", err)
				}
			}

			assert.Equal(t, tt.expected, s.nextSleep())
		})
	}
}

func TestStartStop(t *testing.T) {
	s, _ := setupTestScheduler(t)

	s.Start()
	// Second Start must not spawn a second loop.
	s.Start()

	err := s.Stop()
	assert.NoError(t, err)

	// Stopping an already stopped scheduler is a no-op.
	err = s.Stop()
	assert.NoError(t, err)
}

func TestStopNeverStarted(t *testing.T) {
	s, _ := setupTestScheduler(t)

	// Must return immediately, not wait out the join timeout on a nil channel.
	start := time.Now()
	err := s.Stop()
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStartStopConcurrent(t *testing.T) {
	s, _ := setupTestScheduler(t)

	s.Start()

	// Concurrent Stops must all observe the channel the running loop closes;
	// exactly one joins it, the rest are no-ops.
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Stop()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRestart(t *testing.T) {
	s, _ := setupTestScheduler(t)

	for range 3 {
		s.Start()
		assert.NoError(t, s.Stop())
	}
}

func TestAddMessageWakesLoop(t *testing.T) {
	s, notifier := setupTestScheduler(t)

	s.Start()
	defer func() { _ = s.Stop() }()

	// Near-future message: the loop should wake, then deliver once due.
	_, err := s.AddMessage(NewMessage{
		Title:       "soon",
		Content:     "c",
		ScheduledAt: time.Now().Add(1100 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("failed to add message: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		messages, _ := s.ListPending()
		if len(messages) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("message was not delivered in time")
		case <-time.After(50 * time.Millisecond):
		}
	}

	assert.Len(t, notifier.BroadcastSent, 1)
}
