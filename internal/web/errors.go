package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// returned to the client as a user-friendly JSON message from core.MapError.
// The HTTP status is derived from the message code.

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// codeStatus maps user message codes to HTTP statuses. Codes not listed,
// including ERR000, are server errors.
var codeStatus = map[string]int{
	"AGS001":  http.StatusUnprocessableEntity,
	"AGS002":  http.StatusUnprocessableEntity,
	"AGS003":  http.StatusUnprocessableEntity,
	"AGS004":  http.StatusUnprocessableEntity,
	"MAP002":  http.StatusNotFound,
	"MAP003":  http.StatusConflict,
	"IMP001":  http.StatusServiceUnavailable,
	"IMP002":  http.StatusNotFound,
	"IMP003":  http.StatusRequestTimeout,
	"IMP004":  http.StatusGatewayTimeout,
	"IMP005":  http.StatusBadRequest,
	"IMP006":  http.StatusConflict,
	"FILE001": http.StatusRequestEntityTooLarge,
	"FILE002": http.StatusBadRequest,
	"FILE003": http.StatusBadRequest,
	"STO001":  http.StatusConflict,
	"STO002":  http.StatusConflict,
	"STO003":  http.StatusServiceUnavailable,
	"STO004":  http.StatusServiceUnavailable,
	"STO005":  http.StatusGatewayTimeout,
	"STO006":  http.StatusServiceUnavailable,
}

// statusFor picks the HTTP status for a mapped error.
func statusFor(msg core.UserMessage) int {
	if status, ok := codeStatus[msg.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs err server-side and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		err = fmt.Errorf("file too large: limit is %d bytes", maxBytes.Limit)
	}

	userMsg := core.MapError(err)
	status := statusFor(userMsg)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	}
	if status >= 500 {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}
