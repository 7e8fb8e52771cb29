package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vigil-switch/vigil/internal/server/scheduler"
	"github.com/vigil-switch/vigil/internal/server/store"
)

var demoMessages = []struct {
	Title   string
	Content string
	Delay   time.Duration
}{
	{
		Title:   "Short reminder (1 hour)",
		Content: "This is a sample scheduled message.",
		Delay:   time.Hour,
	},
	{
		Title:   "Daily check (24 hours)",
		Content: "This is a sample daily broadcast.",
		Delay:   24 * time.Hour,
	},
}

var demoSwitch = struct {
	IntervalSeconds int64
	Message         string
	ResetWord       string
}{
	IntervalSeconds: 90000, // 25h, schedules both warnings plus the trigger
	Message:         "This is a sample dead man's switch payload.",
	ResetWord:       "demo-reset",
}

// initDemoMode seeds sample scheduled messages and a sample dead man's
// switch, recreating them at the configured interval.
func (s *Server) initDemoMode() error {
	log := s.logger.With("component", "demo-mode")

	err := clearAllMessages(s.Scheduler)
	if err != nil {
		return fmt.Errorf("failed to clear messages for demo mode: %w", err)
	}

	err = createDemoMessages(log, s.Scheduler, s.Controller)
	if err != nil {
		return fmt.Errorf("failed to create demo messages: %w", err)
	}

	log.Info("demo mode initialized with sample messages")

	if s.DemoResetInterval > 0 {
		go periodicDemoReset(s.ctx, s.logger, s.Scheduler, s.Controller, s.DemoResetInterval)
	}

	return nil
}

// createDemoMessages seeds the store with sample entries. A failed sample
// message is logged and skipped; only a failed switch arm aborts the seed.
func createDemoMessages(log *slog.Logger, sched demoScheduler, ctrl dmsArmer) error {
	for _, demoData := range demoMessages {
		_, err := sched.AddMessage(scheduler.NewMessage{
			Title:       demoData.Title,
			Content:     demoData.Content,
			ScheduledAt: time.Now().Add(demoData.Delay),
		})
		if err != nil {
			log.Error("failed to seed demo message", "title", demoData.Title, "error", err)
			continue
		}
	}

	return ctrl.Arm(demoSwitch.IntervalSeconds, demoSwitch.Message, demoSwitch.ResetWord, "")
}

// clearAllMessages removes every pending message from the store.
func clearAllMessages(sched demoScheduler) error {
	messages, err := sched.ListPending()
	if err != nil {
		return fmt.Errorf("failed to list pending messages: %w", err)
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}

	if len(ids) == 0 {
		return nil
	}

	_, err = sched.DeleteByIDs(ids)
	return err
}

// dmsArmer is the slice of the controller demo mode needs.
type dmsArmer interface {
	Arm(intervalSeconds int64, mainMessage, resetWord, contact string) error
}

// demoScheduler is the slice of the scheduler demo mode needs.
type demoScheduler interface {
	AddMessage(msg scheduler.NewMessage) (string, error)
	ListPending() ([]store.ScheduledMessage, error)
	DeleteByIDs(ids []string) (int, error)
}

// periodicDemoReset periodically clears and recreates the demo entries.
func periodicDemoReset(ctx context.Context, logger *slog.Logger, sched demoScheduler, ctrl dmsArmer, resetInterval time.Duration) {
	log := logger.With("component", "demo-reset")
	ticker := time.NewTicker(resetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("demo reset goroutine stopped")
			return
		case <-ticker.C:
			err := clearAllMessages(sched)
			if err != nil {
				log.Error("failed to clear messages during periodic reset", "error", err)
				continue
			}

			err = createDemoMessages(log, sched, ctrl)
			if err != nil {
				log.Error("failed to recreate demo messages during periodic reset", "error", err)
				continue
			}

			log.Debug("periodic demo reset completed")
		}
	}
}
