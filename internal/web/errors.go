package web

// errors.go renders errors for API and HTMX clients.
//
// The technical error is logged with the request ID; the client receives
// the core.MapError message, as JSON or as an HTML fragment for HTMX.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/coursehub/internal/core"
	"github.com/JonMunkholm/coursehub/internal/logging"
	"github.com/JonMunkholm/coursehub/internal/store"
	"github.com/JonMunkholm/coursehub/internal/web/templates"
)

var (
	errRateLimited   = errors.New("rate limit exceeded")
	errNoFile        = errors.New("no file provided")
	errFileTooLarge  = errors.New("file too large")
	errUnsupported   = errors.New("unsupported file type: expected .csv or .xlsx")
	errInvalidBody   = errors.New("validation failed")
	errStreamingFail = errors.New("streaming not supported")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		verr    *core.ValidationError
		rowErrs core.RowErrors
		fields  validator.ValidationErrors
	)

	switch {
	case errors.Is(err, store.ErrCourseNotFound), errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrCodeConflict):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrCourseExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManySyncs), errors.Is(err, core.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, errUnsupported), errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	case errors.As(err, &verr), errors.As(err, &rowErrs), errors.As(err, &fields):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes a user-facing error for it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"actor", core.ActorFromContext(r.Context()),
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if isHTMX(r) {
		renderErrorPartial(w, r, userMsg, statusCode)
		return
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Details: errorDetails(err),
	}
	writeJSON(w, statusCode, resp)
}

// errorDetails exposes per-field and per-row problems that the client can act on.
func errorDetails(err error) any {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		out := make(map[string]string, len(fields))
		for _, fe := range fields {
			out[fe.Field()] = fe.Translate(translator)
		}
		return out
	}

	var rowErrs core.RowErrors
	if errors.As(err, &rowErrs) {
		return rowErrs
	}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return nil
}

// respondErrorJSON writes a JSON error without logging.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// HTMX ignores non-2xx bodies unless told where to swap them
	w.Header().Set("HX-Retarget", "#alerts")
	w.WriteHeader(statusCode)

	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error partial", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// badRequest wraps a client mistake so it maps to 400.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidBody, strings.TrimSpace(fmt.Sprintf(format, args...)))
}
