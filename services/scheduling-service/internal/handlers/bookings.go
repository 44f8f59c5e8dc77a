package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/identity"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/schedule"
)

type BookingHandler struct {
	svc      *schedule.BookingService
	identity identity.Provider
	logger   *slog.Logger
}

func NewBookingHandler(svc *schedule.BookingService, identityProvider identity.Provider, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, identity: identityProvider, logger: logger}
}

type bookingItem struct {
	BookingID    string `json:"booking_id"`
	TeacherID    string `json:"teacher_id"`
	StudentID    string `json:"student_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`
}

func bookingToItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID:    b.ID,
		TeacherID:    b.TeacherID,
		StudentID:    b.StudentID,
		StartTime:    b.StartTime.UTC().Format(time.RFC3339),
		EndTime:      b.EndTime.UTC().Format(time.RFC3339),
		Status:       string(b.Status),
		Notes:        b.Notes,
		CancelReason: b.CancelReason,
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

type confirmBookingRequest struct {
	BookingID string `json:"booking_id"`
	ActorID   string `json:"actor_id"`
	Status    string `json:"status"`
}

// Confirm advances a booking one lifecycle step. An empty status means the
// default pending-to-confirmed step.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeKind(w, model.ErrorKindInvalidRange, "booking_id is required")
		return
	}
	if err := verifyAccount(r.Context(), h.identity, strings.TrimSpace(req.ActorID)); err != nil {
		writeError(w, err)
		return
	}

	next := model.BookingStatus(strings.TrimSpace(req.Status))
	if next == "" {
		next = model.BookingStatusConfirmed
	}
	switch next {
	case model.BookingStatusConfirmed, model.BookingStatusScheduled, model.BookingStatusCompleted:
	default:
		writeKind(w, model.ErrorKindInvalidRange, "status must be confirmed, scheduled or completed")
		return
	}

	booking, err := h.svc.Transition(r.Context(), req.BookingID, next)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingToItem(booking))
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	ActorID   string `json:"actor_id"`
	Reason    string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeKind(w, model.ErrorKindInvalidRange, "booking_id is required")
		return
	}
	if err := verifyAccount(r.Context(), h.identity, strings.TrimSpace(req.ActorID)); err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.svc.Cancel(r.Context(), req.BookingID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingToItem(booking))
}

// List returns a teacher's or a student's bookings, newest first.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	teacherID := strings.TrimSpace(q.Get("teacher_id"))
	studentID := strings.TrimSpace(q.Get("student_id"))
	if (teacherID == "") == (studentID == "") {
		writeKind(w, model.ErrorKindInvalidRange, "exactly one of teacher_id or student_id is required")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeKind(w, model.ErrorKindInvalidRange, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var (
		bookings []model.Booking
		err      error
	)
	if teacherID != "" {
		bookings, err = h.svc.ListByTeacher(r.Context(), teacherID, limit)
	} else {
		bookings, err = h.svc.ListByStudent(r.Context(), studentID, limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, bookingToItem(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": items})
}
