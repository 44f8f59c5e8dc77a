package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

func TestWriteErrorMapsKindsToStatuses(t *testing.T) {
	cases := []struct {
		kind   model.ErrorKind
		status int
	}{
		{model.ErrorKindInvalidTime, http.StatusBadRequest},
		{model.ErrorKindInvalidRange, http.StatusBadRequest},
		{model.ErrorKindUnauthorized, http.StatusUnauthorized},
		{model.ErrorKindNotFound, http.StatusNotFound},
		{model.ErrorKindOverlap, http.StatusConflict},
		{model.ErrorKindBookingConflict, http.StatusConflict},
		{model.ErrorKindHasBookings, http.StatusConflict},
		{model.ErrorKindSlotUnavailable, http.StatusConflict},
		{model.ErrorKindReservationExpired, http.StatusGone},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, model.E(tc.kind, "boom"))

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Kind != string(tc.kind) {
				t.Fatalf("kind = %q, want %q", body.Error.Kind, tc.kind)
			}
			if body.Error.Message != "boom" {
				t.Fatalf("message = %q, want %q", body.Error.Message, "boom")
			}
		})
	}
}

func TestWriteErrorHidesUnclassifiedDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Kind != "internal" {
		t.Fatalf("kind = %q, want internal", body.Error.Kind)
	}
	if body.Error.Message != "internal error" {
		t.Fatalf("message leaked internals: %q", body.Error.Message)
	}
}

func TestWriteErrorWrappedKindSurvives(t *testing.T) {
	rec := httptest.NewRecorder()
	inner := errors.New("constraint violated")
	writeError(rec, model.WrapE(model.ErrorKindSlotUnavailable, "slot was claimed concurrently", inner))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Kind != string(model.ErrorKindSlotUnavailable) {
		t.Fatalf("kind = %q, want %q", body.Error.Kind, model.ErrorKindSlotUnavailable)
	}
}
