package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vigil-switch/vigil/api"
)

// contextKey is a private type to avoid collisions in context
type contextKey string

// messageContextKey is the context key for a validated NewMessage payload.
const messageContextKey contextKey = "validatedMessage"

// MessageFromContext grabs a NewMessage payload from the context so handlers
// never re-read the request body.
func MessageFromContext(ctx context.Context) (api.NewMessage, bool) {
	msg, ok := ctx.Value(messageContextKey).(api.NewMessage)
	return msg, ok
}

// MessageValidator handles JSON decoding and struct validation for message
// scheduling requests.
func MessageValidator(v *validator.Validate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload := api.NewMessage{}

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

			ctx := context.WithValue(r.Context(), messageContextKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validationMessage flattens validator errors into one readable message.
func validationMessage(err error) string {
	errMsgs := []string{}

	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			errMsgs = append(errMsgs, fmt.Sprintf("field '%s' failed on validation: %s", fe.Field(), fe.Tag()))
		}
	}

	return "Validation failed: " + strings.Join(errMsgs, ", ")
}

// sendJSONError writes a structured error body with the given status code.
func sendJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(api.Error{
		Code:    code,
		Message: msg,
	})
}
