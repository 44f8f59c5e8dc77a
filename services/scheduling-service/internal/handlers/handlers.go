// Package handlers is the HTTP boundary of the scheduling service. Handlers
// decode and validate requests, delegate to the domain services, and map the
// error taxonomy onto statuses; clients classify failures by the kind field
// in the body, never by message text.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/identity"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var e *model.Error
	if errors.As(err, &e) {
		writeJSON(w, statusForKind(e.Kind), errorBody{Error: errorDetail{Kind: string(e.Kind), Message: e.Message}})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Kind: "internal", Message: "internal error"}})
}

func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.ErrorKindInvalidTime, model.ErrorKindInvalidRange:
		return http.StatusBadRequest
	case model.ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case model.ErrorKindNotFound:
		return http.StatusNotFound
	case model.ErrorKindOverlap, model.ErrorKindBookingConflict, model.ErrorKindHasBookings, model.ErrorKindSlotUnavailable:
		return http.StatusConflict
	case model.ErrorKindReservationExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeKind(w http.ResponseWriter, kind model.ErrorKind, message string) {
	writeJSON(w, statusForKind(kind), errorBody{Error: errorDetail{Kind: string(kind), Message: message}})
}

// verifyAccount checks the acting account against the identity service when
// one is configured. A nil provider or an absent account id disables the check.
func verifyAccount(ctx context.Context, p identity.Provider, accountID string) error {
	if p == nil || accountID == "" {
		return nil
	}
	acct, err := p.GetAccount(ctx, accountID)
	if err != nil {
		return model.WrapE(model.ErrorKindUnauthorized, "account lookup failed", err)
	}
	if acct.ID == "" {
		return model.E(model.ErrorKindNotFound, "account not found")
	}
	if !acct.Active {
		return model.E(model.ErrorKindUnauthorized, "account is not active")
	}
	return nil
}
