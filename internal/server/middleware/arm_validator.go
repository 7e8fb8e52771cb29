package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vigil-switch/vigil/api"
)

// armContextKey is the context key for a validated ArmRequest payload.
const armContextKey contextKey = "validatedArm"

// ValidatedArm carries an arm payload together with its pre-parsed interval
// so handlers never parse the duration twice.
type ValidatedArm struct {
	Payload  api.ArmRequest
	Interval time.Duration
}

// ArmFromContext grabs a validated arm payload from the context.
func ArmFromContext(ctx context.Context) (ValidatedArm, bool) {
	val, ok := ctx.Value(armContextKey).(ValidatedArm)
	return val, ok
}

// ArmValidator handles JSON decoding, struct validation, and interval parsing
// for dead man's switch arm requests.
func ArmValidator(v *validator.Validate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload := api.ArmRequest{}

			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, "Read error")
				return
			}

			err = json.Unmarshal(bodyBytes, &payload)
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, "Invalid JSON")
				return
			}

			err = v.Struct(payload)
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, validationMessage(err))
				return
			}

			interval, err := time.ParseDuration(payload.Interval)
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, "Invalid interval time format. Examples are 30m, 2h, 25h")
				return
			}

			if interval <= 0 {
				sendJSONError(w, http.StatusBadRequest, "Interval must be positive")
				return
			}

			ctx := context.WithValue(r.Context(), armContextKey, ValidatedArm{
				Payload:  payload,
				Interval: interval,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
