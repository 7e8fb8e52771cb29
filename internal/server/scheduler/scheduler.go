// Package scheduler owns the background loop that turns scheduled messages
// into delivered ones, and provides the only sanctioned way to add or remove
// pending messages.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-switch/vigil/internal/server/notify"
	"github.com/vigil-switch/vigil/internal/server/store"
)

const (
	// defaultPollInterval is the sleep used when no messages are pending.
	defaultPollInterval = 60 * time.Second
	// minSleep/maxSleep clamp the computed sleep when messages are pending.
	minSleep = 1 * time.Second
	maxSleep = 300 * time.Second

	deliveryTimeout = 30 * time.Second
	stopTimeout     = 5 * time.Second
)

var (
	// ErrNotFuture rejects messages whose scheduled time has already passed.
	ErrNotFuture = errors.New("scheduled time must be in the future")
	// ErrStopTimeout means the background loop did not exit within the
	// bounded wait after Stop.
	ErrStopTimeout = errors.New("scheduler loop did not stop in time")
)

// NewMessage describes a message to enqueue.
type NewMessage struct {
	Title       string
	Content     string
	ScheduledAt time.Time
	// Recipients is an ordered list of contact names; nil means broadcast.
	Recipients  []string
	JSONPayload bool

	// Dead man's switch correlation, set only by the dms controller.
	DeadMansSwitch          bool
	ResetWord               string
	OriginalIntervalSeconds int64
}

// Scheduler maintains the timing loop over the message store. All mutation of
// the store goes through the scheduler's mutex, which spans each full
// read-modify-write cycle.
type Scheduler struct {
	store    store.Store
	notifier notify.Notifier
	alerter  *notify.Alerter
	logger   *slog.Logger

	mu      sync.Mutex
	wake    chan struct{}
	running atomic.Bool
	// done is created under mu in Start and closed by the loop it was
	// handed to; Stop reads it under the same lock.
	done chan struct{}

	// now is swapped out in tests
	now func() time.Time
}

// New returns a scheduler over the given store and notifier. alerter may be
// nil to disable operator alerts.
func New(st store.Store, notifier notify.Notifier, alerter *notify.Alerter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    st,
		notifier: notifier,
		alerter:  alerter,
		logger:   logger.With("component", "scheduler"),
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// AddMessage validates and persists a message, then wakes the loop so it
// reconsiders its sleep immediately. Returns the generated message id.
func (s *Scheduler) AddMessage(msg NewMessage) (string, error) {
	if !msg.ScheduledAt.After(s.now()) {
		return "", ErrNotFuture
	}

	record := store.ScheduledMessage{
		ID:                      "msg_" + uuid.NewString(),
		Title:                   msg.Title,
		Content:                 msg.Content,
		ScheduledAt:             msg.ScheduledAt.Unix(),
		Recipients:              msg.Recipients,
		JSONPayload:             msg.JSONPayload,
		DeadMansSwitch:          msg.DeadMansSwitch,
		ResetWord:               strings.ToLower(msg.ResetWord),
		OriginalIntervalSeconds: msg.OriginalIntervalSeconds,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.store.Load()
	if err != nil {
		return "", err
	}

	messages = append(messages, record)

	err = s.store.Save(messages)
	if err != nil {
		return "", err
	}

	s.logger.Debug("message scheduled", "id", record.ID, "scheduled_at", record.ScheduledAt)
	s.signalWake()

	return record.ID, nil
}

// DeleteByResetWord removes every dead man's switch message whose reset word
// matches, case-insensitively. Deleting a word with no matches is a success
// returning zero.
func (s *Scheduler) DeleteByResetWord(resetWord string) (int, error) {
	word := strings.ToLower(strings.TrimSpace(resetWord))

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.store.Load()
	if err != nil {
		return 0, err
	}

	remaining := make([]store.ScheduledMessage, 0, len(messages))
	deleted := 0
	for _, m := range messages {
		if m.DeadMansSwitch && strings.ToLower(m.ResetWord) == word {
			deleted++
			continue
		}
		remaining = append(remaining, m)
	}

	if deleted > 0 {
		err = s.store.Save(remaining)
		if err != nil {
			return 0, err
		}
		s.logger.Info("deleted messages by reset word", "count", deleted)
	}

	s.signalWake()

	return deleted, nil
}

// DeleteByIDs removes the messages with the given ids, of any kind, and
// returns how many were removed.
func (s *Scheduler) DeleteByIDs(ids []string) (int, error) {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.store.Load()
	if err != nil {
		return 0, err
	}

	remaining := make([]store.ScheduledMessage, 0, len(messages))
	deleted := 0
	for _, m := range messages {
		if selected[m.ID] {
			deleted++
			continue
		}
		remaining = append(remaining, m)
	}

	if deleted > 0 {
		err = s.store.Save(remaining)
		if err != nil {
			return 0, err
		}
		s.logger.Info("deleted messages by id", "count", deleted)
	}

	s.signalWake()

	return deleted, nil
}

// ListPending returns a snapshot of every pending message.
func (s *Scheduler) ListPending() ([]store.ScheduledMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Load()
}

// Start launches the background loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.done = make(chan struct{})
	go s.loop(s.done)
}

// Stop signals the loop to exit and waits for it with a bounded timeout.
// Safe to call from any goroutine, including one that never called Start.
func (s *Scheduler) Stop() error {
	// The flag flip and the done read happen under the same lock as Start's
	// assignment, so a Stop racing a Start never sees a stale channel. The
	// lock is released before waiting: the loop needs it to finish its cycle.
	s.mu.Lock()
	if !s.running.CompareAndSwap(true, false) {
		s.mu.Unlock()
		return nil
	}
	done := s.done
	s.mu.Unlock()

	s.signalWake()

	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		return ErrStopTimeout
	}
}

func (s *Scheduler) loop(done chan struct{}) {
	defer close(done)

	s.logger.Info("scheduler loop started")

	for s.running.Load() {
		s.processDue()

		sleep := s.nextSleep()
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		}
		// The running flag is re-checked at the top of the loop before any
		// further work, whether we woke by signal or timeout.
	}

	s.logger.Info("scheduler loop stopped")
}

// processDue delivers every due message and persists the remaining pending
// set. The mutex is held across the whole cycle so a concurrent reset cannot
// delete a message that is mid-delivery.
func (s *Scheduler) processDue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.store.Load()
	if err != nil || len(messages) == 0 {
		return
	}

	now := s.now().Unix()
	pending := make([]store.ScheduledMessage, 0, len(messages))
	due := []store.ScheduledMessage{}
	for _, m := range messages {
		if m.ScheduledAt <= now {
			due = append(due, m)
			continue
		}
		pending = append(pending, m)
	}

	if len(due) == 0 {
		// Nothing changed, skip the write.
		return
	}

	for _, m := range due {
		s.deliver(m)
	}

	err = s.store.Save(pending)
	if err != nil {
		s.logger.Error("failed to persist pending messages after delivery", "error", err)
	}
}

// deliver builds the outbound text for a due message and sends it at most
// once. Recipient-level failures are recorded and dropped; there is no retry.
func (s *Scheduler) deliver(m store.ScheduledMessage) {
	text := s.renderOutbound(m)

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if m.Broadcast() {
		result, err := s.notifier.Broadcast(ctx, text)
		if err != nil {
			s.logger.Error("broadcast failed", "id", m.ID, "error", err)
			s.alert(fmt.Sprintf("vigil: broadcast of message %s failed: %v", m.ID, err))
			return
		}

		s.logger.Info("message broadcast", "id", m.ID, "delivered", len(result.Delivered), "failed", len(result.Failed))
		if len(result.Failed) > 0 {
			s.alert(fmt.Sprintf("vigil: message %s failed delivery to %d contact(s)", m.ID, len(result.Failed)))
		}
		return
	}

	contacts, err := s.notifier.ResolveContacts(ctx)
	if err != nil {
		s.logger.Error("failed to resolve contacts", "id", m.ID, "error", err)
		s.alert(fmt.Sprintf("vigil: could not resolve contacts for message %s: %v", m.ID, err))
		return
	}

	byName := make(map[string]string, len(contacts))
	for _, c := range contacts {
		byName[c.Name] = c.ID
	}

	delivered := 0
	failed := []string{}
	for _, name := range m.Recipients {
		contactID, ok := byName[name]
		if !ok {
			failed = append(failed, name)
			continue
		}

		err := s.notifier.SendToContact(ctx, contactID, text)
		if err != nil {
			s.logger.Error("delivery failed", "id", m.ID, "recipient", name, "error", err)
			failed = append(failed, name)
			continue
		}
		delivered++
	}

	s.logger.Info("message delivered", "id", m.ID, "delivered", delivered, "failed", len(failed))
	if len(failed) > 0 {
		s.alert(fmt.Sprintf("vigil: message %s failed delivery to %d recipient(s)", m.ID, len(failed)))
	}
}

// renderOutbound builds the final wire text for a message.
func (s *Scheduler) renderOutbound(m store.ScheduledMessage) string {
	sentAt := s.now().Unix()

	if m.JSONPayload {
		payload := struct {
			Title         string `json:"title"`
			Content       string `json:"content"`
			SentTimestamp int64  `json:"sent_timestamp"`
		}{
			Title:         m.Title,
			Content:       m.Content,
			SentTimestamp: sentAt,
		}
		data, err := json.Marshal(payload)
		if err == nil {
			return string(data)
		}
		// Fall through to plain formatting on the off chance marshal fails.
	}

	return fmt.Sprintf("%s\n\n%s\n\nSent: %d", m.Title, m.Content, sentAt)
}

// nextSleep computes how long the loop should sleep: the smallest delta to a
// pending message clamped to [1s, 300s], or the default poll interval when
// nothing is pending.
func (s *Scheduler) nextSleep() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.store.Load()
	if err != nil {
		return defaultPollInterval
	}

	now := s.now().Unix()
	var earliest int64 = -1
	for _, m := range messages {
		if m.ScheduledAt > now && (earliest < 0 || m.ScheduledAt < earliest) {
			earliest = m.ScheduledAt
		}
	}

	if earliest < 0 {
		return defaultPollInterval
	}

	sleep := time.Duration(earliest-now) * time.Second
	if sleep < minSleep {
		sleep = minSleep
	}
	if sleep > maxSleep {
		sleep = maxSleep
	}

	return sleep
}

// signalWake is a non-blocking, single-slot wake: signaling twice before the
// loop consumes it collapses to one wake.
func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) alert(text string) {
	if s.alerter == nil {
		return
	}

	err := s.alerter.Alert(text)
	if err != nil {
		s.logger.Error("failed to send operator alert", "error", err)
	}
}
