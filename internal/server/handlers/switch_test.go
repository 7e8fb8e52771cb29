package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vigil-switch/vigil/api"
	"github.com/vigil-switch/vigil/internal/server/dms"
	"github.com/vigil-switch/vigil/internal/server/middleware"
	"github.com/vigil-switch/vigil/internal/server/store"
)

// fakeSwitchService satisfies the SwitchService interface
type fakeSwitchService struct {
	armErr error

	ArmedInterval int64
	ArmedMessage  string
	ArmedWord     string
	ArmedContact  string

	InboundSender string
	InboundText   string
}

func (f *fakeSwitchService) Arm(intervalSeconds int64, mainMessage, resetWord, contact string) error {
	if f.armErr != nil {
		return f.armErr
	}
	f.ArmedInterval = intervalSeconds
	f.ArmedMessage = mainMessage
	f.ArmedWord = resetWord
	f.ArmedContact = contact
	return nil
}

func (f *fakeSwitchService) HandleInboundText(senderContact, text string) {
	f.InboundSender = senderContact
	f.InboundText = text
}

// postSwitch runs a request through the arm validator and handler the same
// way the router wires them.
func postSwitch(h *Switch, body []byte) *httptest.ResponseRecorder {
	v := validator.New()
	handler := middleware.ArmValidator(v)(http.HandlerFunc(h.PostHandleFunc))

	req := httptest.NewRequest(http.MethodPost, "/v1/switch", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSwitchPostHandleFunc(t *testing.T) {
	t.Run("arms a switch and reports what it scheduled", func(t *testing.T) {
		svc := &fakeSwitchService{}
		h := &Switch{Controller: svc, Scheduler: &fakeScheduler{}, Logger: testLogger()}

		body, _ := json.Marshal(api.ArmRequest{
			Interval:  "25h",
			Message:   "payload",
			ResetWord: "apple",
			Contact:   "alice",
		})
		rec := postSwitch(h, body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
		}

		if svc.ArmedInterval != 25*3600 {
			t.Errorf("expected interval 90000, got %d", svc.ArmedInterval)
		}
		if svc.ArmedContact != "alice" {
			t.Errorf("expected contact alice, got %q", svc.ArmedContact)
		}

		resp := api.ArmResult{}
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		// 25h schedules both warnings plus the trigger.
		if resp.Scheduled != 3 {
			t.Errorf("expected 3 scheduled, got %d", resp.Scheduled)
		}
	})

	t.Run("short interval schedules only the trigger", func(t *testing.T) {
		h := &Switch{Controller: &fakeSwitchService{}, Scheduler: &fakeScheduler{}, Logger: testLogger()}

		body, _ := json.Marshal(api.ArmRequest{
			Interval:  "30m",
			Message:   "payload",
			ResetWord: "apple",
		})
		rec := postSwitch(h, body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}

		resp := api.ArmResult{}
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Scheduled != 1 {
			t.Errorf("expected 1 scheduled, got %d", resp.Scheduled)
		}
	})

	t.Run("returns 400 for an unparseable interval", func(t *testing.T) {
		h := &Switch{Controller: &fakeSwitchService{}, Scheduler: &fakeScheduler{}, Logger: testLogger()}

		body, _ := json.Marshal(api.ArmRequest{
			Interval:  "tomorrow",
			Message:   "payload",
			ResetWord: "apple",
		})
		rec := postSwitch(h, body)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 for controller validation errors", func(t *testing.T) {
		h := &Switch{
			Controller: &fakeSwitchService{armErr: dms.ErrEmptyResetWord},
			Scheduler:  &fakeScheduler{},
			Logger:     testLogger(),
		}

		body, _ := json.Marshal(api.ArmRequest{
			Interval:  "1h",
			Message:   "payload",
			ResetWord: "   ",
		})
		rec := postSwitch(h, body)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSwitchDeleteHandleFunc(t *testing.T) {
	h := &Switch{
		Controller: &fakeSwitchService{},
		Scheduler: &fakeScheduler{
			messages: []store.ScheduledMessage{
				{ID: "msg_1", DeadMansSwitch: true, ResetWord: "apple"},
				{ID: "msg_2", DeadMansSwitch: true, ResetWord: "apple"},
			},
		},
		Logger: testLogger(),
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/switch/apple", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("word", "apple")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.DeleteHandleFunc(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := api.DeleteResult{}
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", resp.Deleted)
	}
}
