package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vigil-switch/vigil/api"
)

// Inbound accepts decoded inbound chat events from the external event feed
// and routes them to the dead man's switch controller. Each event is an
// independent, idempotent-safe invocation.
type Inbound struct {
	Controller SwitchService
	Validator  *validator.Validate
	Logger     *slog.Logger
}

// PostHandleFunc processes one inbound (sender, text) event.
func (h *Inbound) PostHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	payload := api.InboundEvent{}
	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		sendError(h.Logger, w, http.StatusBadRequest, errInvalidJSON, err)
		return
	}

	err = h.Validator.Struct(payload)
	if err != nil {
		sendError(h.Logger, w, http.StatusBadRequest, "Sender contact id is required", err)
		return
	}

	h.Controller.HandleInboundText(payload.ContactID, payload.Text)

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(api.Ack{
		Status: "accepted",
	})
}
