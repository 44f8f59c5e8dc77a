package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/identity"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/reservation"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/timeutil"
)

type ReservationHandler struct {
	manager  *reservation.Manager
	identity identity.Provider
	logger   *slog.Logger
}

func NewReservationHandler(manager *reservation.Manager, identityProvider identity.Provider, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{manager: manager, identity: identityProvider, logger: logger}
}

type createReservationRequest struct {
	TeacherID string `json:"teacher_id"`
	StudentID string `json:"student_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type reservationItem struct {
	ReservationID string `json:"reservation_id"`
	TeacherID     string `json:"teacher_id"`
	StudentID     string `json:"student_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	ExpiresAt     string `json:"expires_at"`
}

func reservationToItem(rv model.Reservation) reservationItem {
	return reservationItem{
		ReservationID: rv.ID,
		TeacherID:     rv.TeacherID,
		StudentID:     rv.StudentID,
		StartTime:     rv.StartTime.UTC().Format(time.RFC3339),
		EndTime:       rv.EndTime.UTC().Format(time.RFC3339),
		Status:        string(rv.Status),
		ExpiresAt:     rv.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	req.TeacherID = strings.TrimSpace(req.TeacherID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.TeacherID == "" || req.StudentID == "" {
		writeKind(w, model.ErrorKindInvalidRange, "teacher_id and student_id are required")
		return
	}
	if err := verifyAccount(r.Context(), h.identity, req.StudentID); err != nil {
		writeError(w, err)
		return
	}

	start, err := timeutil.ToInstant(req.StartTime)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := timeutil.ToInstant(req.EndTime)
	if err != nil {
		writeError(w, err)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	rv, replayed, err := h.manager.Create(r.Context(), req.TeacherID, req.StudentID,
		availability.Interval{Start: start, End: end}, idemKey)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, reservationToItem(rv))
}

type reservationIDRequest struct {
	ReservationID string `json:"reservation_id"`
}

func (h *ReservationHandler) Renew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reservationIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ReservationID) == "" {
		writeKind(w, model.ErrorKindInvalidRange, "reservation_id is required")
		return
	}

	rv, err := h.manager.Renew(r.Context(), req.ReservationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationToItem(rv))
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reservationIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ReservationID) == "" {
		writeKind(w, model.ErrorKindInvalidRange, "reservation_id is required")
		return
	}

	if err := h.manager.Cancel(r.Context(), req.ReservationID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservation_id": req.ReservationID, "status": string(model.ReservationStatusCancelled)})
}

type promoteReservationRequest struct {
	ReservationID string `json:"reservation_id"`
	Notes         string `json:"notes"`
}

func (h *ReservationHandler) Promote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req promoteReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ReservationID) == "" {
		writeKind(w, model.ErrorKindInvalidRange, "reservation_id is required")
		return
	}

	booking, err := h.manager.Promote(r.Context(), req.ReservationID, reservation.BookingMeta{Notes: req.Notes})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingToItem(booking))
}
