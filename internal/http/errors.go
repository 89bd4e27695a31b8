package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"contaae/internal/advisor"
	"contaae/internal/core"
	"contaae/internal/log"
	"contaae/internal/middleware/trace"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// errorMapping turns a domain error into a status and a message the caller
// can act on.
var errorMapping = []struct {
	err     error
	status  int
	message string
}{
	{core.ErrInvalidMonth, http.StatusBadRequest, "select a valid period"},
	{core.ErrInvalidRange, http.StatusBadRequest, "select a valid period: start must not be after end"},
	{core.ErrInvalidDay, http.StatusBadRequest, "select a valid day"},
	{core.ErrInvalidDate, http.StatusBadRequest, "select a valid date (YYYY-MM-DD)"},
	{core.ErrInvalidAmount, http.StatusUnprocessableEntity, "amount must be positive"},
	{core.ErrInvalidDirection, http.StatusUnprocessableEntity, "direction must be income or expense"},
	{core.ErrInvalidStrategy, http.StatusUnprocessableEntity, "strategy must be distribute or deduct_next"},
	{core.ErrInvalidSequence, http.StatusUnprocessableEntity, "invalid installment sequence"},
	{core.ErrEmptyDescription, http.StatusUnprocessableEntity, "description is required"},
	{core.ErrInstallmentNotFound, http.StatusNotFound, "installment not found"},
	{core.ErrAlreadySettled, http.StatusConflict, "installment already settled"},
	{core.ErrSeriesChanged, http.StatusConflict, "the installment series changed, reload it and try again"},
	{core.ErrDuplicateBudget, http.StatusConflict, "a budget for this category and month already exists"},
	{errBadBody, http.StatusBadRequest, "request body must be valid JSON"},
	{advisor.ErrEmptyConversation, http.StatusBadRequest, "send at least one message"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "the request took too long, try again"},
}

func mapError(err error) (int, string, bool) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.message, true
		}
	}
	return 0, "", false
}

// writeError answers with the mapped status, or 500 for unknown errors.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if status, msg, ok := mapError(err); ok {
		writeMessage(w, r, status, msg)
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error())
	writeMessage(w, r, http.StatusInternalServerError, "internal error")
}

// writeInputError answers 422 with err's own text when err is not a known
// domain error; validation messages are meant for the caller.
func writeInputError(w http.ResponseWriter, r *http.Request, err error) {
	if status, msg, ok := mapError(err); ok {
		writeMessage(w, r, status, msg)
		return
	}
	writeMessage(w, r, http.StatusUnprocessableEntity, err.Error())
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Error:     message,
		RequestID: trace.GetRequestID(r.Context()),
		Timestamp: time.Now().Unix(),
	})
}
