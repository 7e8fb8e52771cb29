package notify

import (
	"fmt"
	"log/slog"

	"github.com/nicholas-fedor/shoutrrr"
)

// Alerter pushes operator alerts to a set of Shoutrrr notification URLs.
// Alerts are out-of-band signals about the scheduler itself (a trigger fired,
// a delivery failed); they never carry message content.
type Alerter struct {
	URLs   []string
	Logger *slog.Logger
}

// Alert sends text to every configured URL and returns an error if any
// delivery fails.
func (a *Alerter) Alert(text string) error {
	for _, url := range a.URLs {
		sender, err := shoutrrr.CreateSender(url)
		if err != nil {
			return fmt.Errorf("failed to create alert sender: %w", err)
		}

		errs := sender.Send(text, nil)
		for _, sendErr := range errs {
			if sendErr != nil {
				return fmt.Errorf("alert delivery failed: %w", sendErr)
			}
		}

		a.Logger.Debug("alert sent")
	}

	return nil
}
