// Package handlers contains the HTTP handlers for the vigil API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vigil-switch/vigil/api"
	"github.com/vigil-switch/vigil/internal/server/scheduler"
	"github.com/vigil-switch/vigil/internal/server/store"
)

// SchedulerService is the slice of scheduler behavior the handlers depend on.
type SchedulerService interface {
	AddMessage(msg scheduler.NewMessage) (string, error)
	ListPending() ([]store.ScheduledMessage, error)
	DeleteByIDs(ids []string) (int, error)
	DeleteByResetWord(resetWord string) (int, error)
}

// SwitchService is the slice of dead man's switch behavior the handlers
// depend on.
type SwitchService interface {
	Arm(intervalSeconds int64, mainMessage, resetWord, contact string) error
	HandleInboundText(senderContact, text string)
}

// sendError handles both the JSON response and logging of internal errors.
func sendError(logger *slog.Logger, w http.ResponseWriter, code int, publicMsg string, internalErr error) {
	if code >= http.StatusInternalServerError {
		logger.Error(publicMsg, "error", internalErr)
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(api.Error{
		Code:    code,
		Message: publicMsg,
	})
}

// messageView maps a stored message to its API view. The reset word is
// redacted so a switch's secret never leaves the server.
func messageView(m store.ScheduledMessage) api.Message {
	return api.Message{
		ID:                      m.ID,
		Title:                   m.Title,
		Content:                 m.Content,
		ScheduledAt:             m.ScheduledAt,
		Recipients:              m.Recipients,
		JSONPayload:             m.JSONPayload,
		DeadMansSwitch:          m.DeadMansSwitch,
		OriginalIntervalSeconds: m.OriginalIntervalSeconds,
	}
}
