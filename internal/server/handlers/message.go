package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vigil-switch/vigil/api"
	"github.com/vigil-switch/vigil/internal/server/middleware"
	"github.com/vigil-switch/vigil/internal/server/scheduler"
)

// Error messages
const (
	errInvalidJSON    = "Invalid JSON"
	errNotFuture      = "Scheduled time must be in the future"
	errSchedulerError = "Scheduler error"
)

// Messages handles scheduled message requests.
type Messages struct {
	Scheduler SchedulerService
	Validator *validator.Validate
	Logger    *slog.Logger
}

// PostHandleFunc schedules a new message.
func (h *Messages) PostHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	payload, ok := middleware.MessageFromContext(r.Context())
	if !ok {
		sendError(h.Logger, w, http.StatusInternalServerError, "Internal context error", nil)
		return
	}

	id, err := h.Scheduler.AddMessage(scheduler.NewMessage{
		Title:       payload.Title,
		Content:     payload.Content,
		ScheduledAt: time.Unix(payload.ScheduledAt, 0),
		Recipients:  payload.Recipients,
		JSONPayload: payload.JSONPayload,
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrNotFuture) {
			sendError(h.Logger, w, http.StatusBadRequest, errNotFuture, err)
			return
		}
		sendError(h.Logger, w, http.StatusInternalServerError, errSchedulerError, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(api.Message{
		ID:          id,
		Title:       payload.Title,
		Content:     payload.Content,
		ScheduledAt: payload.ScheduledAt,
		Recipients:  payload.Recipients,
		JSONPayload: payload.JSONPayload,
	})
}

// GetHandleFunc lists every pending message.
func (h *Messages) GetHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	pending, err := h.Scheduler.ListPending()
	if err != nil {
		sendError(h.Logger, w, http.StatusInternalServerError, errSchedulerError, err)
		return
	}

	views := make([]api.Message, 0, len(pending))
	for _, m := range pending {
		views = append(views, messageView(m))
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(views)
}

// DeleteHandleFunc deletes pending messages by id.
func (h *Messages) DeleteHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	payload := api.DeleteMessagesRequest{}
	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		sendError(h.Logger, w, http.StatusBadRequest, errInvalidJSON, err)
		return
	}

	err = h.Validator.Struct(payload)
	if err != nil {
		sendError(h.Logger, w, http.StatusBadRequest, "At least one message id is required", err)
		return
	}

	deleted, err := h.Scheduler.DeleteByIDs(payload.IDs)
	if err != nil {
		sendError(h.Logger, w, http.StatusInternalServerError, errSchedulerError, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(api.DeleteResult{
		Deleted: deleted,
	})
}
