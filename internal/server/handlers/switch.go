package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vigil-switch/vigil/api"
	"github.com/vigil-switch/vigil/internal/server/dms"
	"github.com/vigil-switch/vigil/internal/server/middleware"
)

// Error messages
const (
	errArmFailed    = "Failed to arm dead man's switch"
	errMissingWord  = "Reset word is required"
	errDisarmFailed = "Failed to disarm dead man's switch"
)

// Switch handles dead man's switch requests.
type Switch struct {
	Controller SwitchService
	Scheduler  SchedulerService
	Logger     *slog.Logger
}

// PostHandleFunc arms a dead man's switch.
func (h *Switch) PostHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	val, ok := middleware.ArmFromContext(r.Context())
	if !ok {
		sendError(h.Logger, w, http.StatusInternalServerError, "Internal context error", nil)
		return
	}
	payload := val.Payload

	intervalSeconds := int64(val.Interval / time.Second)
	err := h.Controller.Arm(intervalSeconds, payload.Message, payload.ResetWord, payload.Contact)
	if err != nil {
		if errors.Is(err, dms.ErrInvalidInterval) || errors.Is(err, dms.ErrEmptyResetWord) {
			sendError(h.Logger, w, http.StatusBadRequest, err.Error(), err)
			return
		}
		sendError(h.Logger, w, http.StatusInternalServerError, errArmFailed, err)
		return
	}

	scheduled := 1
	if intervalSeconds > 2*3600 {
		scheduled++
	}
	if intervalSeconds > 24*3600 {
		scheduled++
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(api.ArmResult{
		Scheduled: scheduled,
		TriggerAt: time.Now().Add(val.Interval).Unix(),
	})
}

// DeleteHandleFunc disarms a switch by deleting every message sharing the
// reset word. Disarming an unknown word succeeds with a zero count.
func (h *Switch) DeleteHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	word := chi.URLParam(r, "word")
	if word == "" {
		sendError(h.Logger, w, http.StatusBadRequest, errMissingWord, nil)
		return
	}

	deleted, err := h.Scheduler.DeleteByResetWord(word)
	if err != nil {
		sendError(h.Logger, w, http.StatusInternalServerError, errDisarmFailed, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(api.DeleteResult{
		Deleted: deleted,
	})
}
