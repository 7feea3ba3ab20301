package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func newErrorBody(err error, sessionID string) errorBody {
	return errorBody{Error: err.Error(), Retryable: retryable(err), SessionID: sessionID}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contractx.ErrMalformedBookingEvent),
		errors.Is(err, contractx.ErrValidation),
		errors.Is(err, contractx.ErrToolArgumentInvalid):
		return http.StatusBadRequest
	case errors.Is(err, contractx.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, contractx.ErrTurnInProgress),
		errors.Is(err, contractx.ErrSessionEnded),
		errors.Is(err, contractx.ErrNothingToRetry),
		errors.Is(err, contractx.ErrNotSeeded):
		return http.StatusConflict
	case errors.Is(err, contractx.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, contractx.ErrModelUnavailable),
		errors.Is(err, contractx.ErrSummarizationTimeout),
		errors.Is(err, contractx.ErrNotificationDispatchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// retryable reports whether the same turn may succeed through the retry endpoint.
func retryable(err error) bool {
	return errors.Is(err, contractx.ErrModelUnavailable)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	writeJSON(w, statusFor(err), newErrorBody(err, ""))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.Join(contractx.ErrValidation, err)
	}
	return nil
}
