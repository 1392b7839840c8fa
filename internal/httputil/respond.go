// Package httputil provides shared HTTP response helpers used by the API
// handlers and middleware.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/winddownhq/winddown/internal/logging"
)

// ErrorBody is the JSON envelope for every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the classification surfaced to callers.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	TraceID string                 `json:"trace_id,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteErrorResponse writes a classified error with the given status.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	body := ErrorBody{Error: ErrorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}}
	if r != nil {
		body.Error.TraceID = logging.GetTraceID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Unauthorized writes a 401 with the UNAUTHORIZED code.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	WriteErrorResponse(w, nil, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// RequireUserID resolves the acting user from the request context. When no
// user is present it writes a 401 and reports false; handlers must return
// without touching storage.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "")
		return "", false
	}
	return userID, true
}

// WriteJSON writes a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
