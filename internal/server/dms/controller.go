// Package dms implements the dead man's switch policy layer: it arms a switch
// as a set of correlated scheduled messages sharing a reset word, and reacts
// to inbound chat text to reset or disable them.
package dms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vigil-switch/vigil/internal/server/notify"
	"github.com/vigil-switch/vigil/internal/server/scheduler"
	"github.com/vigil-switch/vigil/internal/server/store"
)

// Message titles and boilerplate warning content. Only the triggered message
// ever carries the owner's real payload.
const (
	TitleTriggered  = "Dead Man's Switch - Triggered"
	Title24hWarning = "Dead Man's Switch - 24 Hour Warning"
	Title2hWarning  = "Dead Man's Switch - 2 Hour Warning"

	content24hWarning = "This is a 24-hour warning. The dead man's switch will trigger in 24 hours unless reset with the correct word."
	content2hWarning  = "This is a 2-hour warning. The dead man's switch will trigger in 2 hours unless reset with the correct word."
)

// Confirmation texts sent back to the contact who reset or disabled a switch.
const (
	confirmReset         = "Dead man's switch has been reset and timer restarted."
	confirmResetFailed   = "Failed to reset dead man's switch."
	confirmDisabled      = "Dead man's switch has been permanently disabled."
	confirmDisableFailed = "Failed to disable dead man's switch."
)

// disableKeyword turns a reset message into a permanent disable when present
// anywhere in the text alongside the reset word.
const disableKeyword = "end"

const confirmTimeout = 10 * time.Second

// Validation errors
var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrEmptyResetWord  = errors.New("reset word must not be empty")
	ErrNoTrigger       = errors.New("no triggered message found for reset word")
)

// Scheduler is the slice of scheduler behavior the controller depends on.
type Scheduler interface {
	AddMessage(msg scheduler.NewMessage) (string, error)
	DeleteByResetWord(resetWord string) (int, error)
	DeleteByIDs(ids []string) (int, error)
	ListPending() ([]store.ScheduledMessage, error)
}

// Controller arms, monitors, resets, and disables dead man's switches,
// expressed purely as correlated entries in the scheduler.
type Controller struct {
	sched    Scheduler
	notifier notify.Notifier
	logger   *slog.Logger

	// now is swapped out in tests
	now func() time.Time
}

// New returns a controller over the given scheduler and notifier.
func New(sched Scheduler, notifier notify.Notifier, logger *slog.Logger) *Controller {
	return &Controller{
		sched:    sched,
		notifier: notifier,
		logger:   logger.With("component", "dms"),
		now:      time.Now,
	}
}

// Arm schedules a dead man's switch: the triggered message at
// now+intervalSeconds, a 2-hour warning when the interval exceeds 2 hours,
// and a 24-hour warning when it exceeds 24 hours. An empty contact broadcasts
// the switch to all known contacts. Either every message is scheduled or none
// are.
func (c *Controller) Arm(intervalSeconds int64, mainMessage, resetWord, contact string) error {
	var recipients []string
	if contact != "" {
		recipients = []string{contact}
	}

	return c.arm(intervalSeconds, mainMessage, resetWord, recipients)
}

func (c *Controller) arm(intervalSeconds int64, mainMessage, resetWord string, recipients []string) error {
	if intervalSeconds <= 0 {
		return ErrInvalidInterval
	}

	word := strings.ToLower(strings.TrimSpace(resetWord))
	if word == "" {
		return ErrEmptyResetWord
	}

	triggerAt := c.now().Add(time.Duration(intervalSeconds) * time.Second)

	type entry struct {
		title   string
		content string
		at      time.Time
	}

	entries := []entry{}
	if intervalSeconds > 24*3600 {
		entries = append(entries, entry{Title24hWarning, content24hWarning, triggerAt.Add(-24 * time.Hour)})
	}
	if intervalSeconds > 2*3600 {
		entries = append(entries, entry{Title2hWarning, content2hWarning, triggerAt.Add(-2 * time.Hour)})
	}
	entries = append(entries, entry{TitleTriggered, mainMessage, triggerAt})

	created := []string{}
	for _, e := range entries {
		id, err := c.sched.AddMessage(scheduler.NewMessage{
			Title:                   e.title,
			Content:                 e.content,
			ScheduledAt:             e.at,
			Recipients:              recipients,
			DeadMansSwitch:          true,
			ResetWord:               word,
			OriginalIntervalSeconds: intervalSeconds,
		})
		if err != nil {
			// Roll back so a failed arm leaves no partial schedule behind.
			if len(created) > 0 {
				_, _ = c.sched.DeleteByIDs(created)
			}
			return fmt.Errorf("failed to arm dead man's switch: %w", err)
		}
		created = append(created, id)
	}

	c.logger.Info("dead man's switch armed",
		"interval_seconds", intervalSeconds,
		"messages", len(created),
		"broadcast", recipients == nil,
	)

	return nil
}

// HandleInboundText inspects one inbound chat message for a reset word of an
// armed switch. A match containing "end" disables the switch permanently; any
// other match resets its timer. The sender always gets a single-contact
// confirmation, whatever the switch itself targets.
func (c *Controller) HandleInboundText(senderContact, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(text))

	messages, err := c.sched.ListPending()
	if err != nil || len(messages) == 0 {
		return
	}

	// Distinct reset words among armed switches, mapped to their original
	// interval, in store order.
	intervals := map[string]int64{}
	words := []string{}
	for _, m := range messages {
		if !m.DeadMansSwitch || m.ResetWord == "" {
			continue
		}
		word := strings.ToLower(m.ResetWord)
		if _, seen := intervals[word]; !seen {
			intervals[word] = m.OriginalIntervalSeconds
			words = append(words, word)
		}
	}
	if len(words) == 0 {
		return
	}

	// First match wins. When reset words of distinct switches are substrings
	// of the same text, only the first in store order is affected; this is a
	// known limitation.
	matched := ""
	for _, word := range words {
		if strings.Contains(normalized, word) {
			matched = word
			break
		}
	}
	if matched == "" {
		return
	}

	if strings.Contains(normalized, disableKeyword) {
		err := c.disable(matched)
		if err != nil {
			c.logger.Error("failed to disable dead man's switch", "error", err)
			c.confirm(senderContact, confirmDisableFailed)
			return
		}
		c.confirm(senderContact, confirmDisabled)
		return
	}

	err = c.reset(matched, intervals[matched])
	if err != nil {
		c.logger.Error("failed to reset dead man's switch", "error", err)
		c.confirm(senderContact, confirmResetFailed)
		return
	}
	c.confirm(senderContact, confirmReset)
}

// disable permanently removes every message of the switch. Deleting a word
// with no remaining matches still succeeds.
func (c *Controller) disable(resetWord string) error {
	deleted, err := c.sched.DeleteByResetWord(resetWord)
	if err != nil {
		return err
	}

	c.logger.Info("dead man's switch disabled", "deleted", deleted)
	return nil
}

// reset recovers the original trigger payload and target, deletes the
// switch's messages, and re-arms with the original interval so the clock
// restarts from now.
func (c *Controller) reset(resetWord string, intervalSeconds int64) error {
	messages, err := c.sched.ListPending()
	if err != nil {
		return err
	}

	var trigger *store.ScheduledMessage
	for i, m := range messages {
		if m.DeadMansSwitch && strings.ToLower(m.ResetWord) == resetWord && m.Title == TitleTriggered {
			trigger = &messages[i]
			break
		}
	}
	if trigger == nil {
		// Already delivered or expired; the original payload is gone.
		return ErrNoTrigger
	}

	_, err = c.sched.DeleteByResetWord(resetWord)
	if err != nil {
		return err
	}

	return c.arm(intervalSeconds, trigger.Content, resetWord, trigger.Recipients)
}

// confirm sends a single-contact confirmation back to the sender.
func (c *Controller) confirm(contactID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), confirmTimeout)
	defer cancel()

	err := c.notifier.SendToContact(ctx, contactID, text)
	if err != nil {
		c.logger.Error("failed to send confirmation", "contact", contactID, "error", err)
	}
}
