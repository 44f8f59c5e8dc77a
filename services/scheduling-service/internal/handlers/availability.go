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
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/schedule"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/timeutil"
)

type AvailabilityHandler struct {
	svc      *schedule.AvailabilityService
	identity identity.Provider
	logger   *slog.Logger
}

func NewAvailabilityHandler(svc *schedule.AvailabilityService, identityProvider identity.Provider, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc, identity: identityProvider, logger: logger}
}

// DeclareOrQuery serves the collection path: POST declares, GET queries.
func (h *AvailabilityHandler) DeclareOrQuery(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Declare(w, r)
	case http.MethodGet:
		h.Query(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type declareAvailabilityRequest struct {
	TeacherID string `json:"teacher_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Note      string `json:"note"`
}

type windowItem struct {
	WindowID    string `json:"window_id"`
	TeacherID   string `json:"teacher_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
	Note        string `json:"note,omitempty"`
}

func windowToItem(w model.AvailabilityWindow) windowItem {
	return windowItem{
		WindowID:    w.ID,
		TeacherID:   w.TeacherID,
		StartTime:   w.StartTime.UTC().Format(time.RFC3339),
		EndTime:     w.EndTime.UTC().Format(time.RFC3339),
		IsAvailable: w.IsAvailable,
		Note:        w.Note,
	}
}

func (h *AvailabilityHandler) Declare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req declareAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	req.TeacherID = strings.TrimSpace(req.TeacherID)
	if req.TeacherID == "" {
		writeKind(w, model.ErrorKindInvalidRange, "teacher_id is required")
		return
	}
	if err := verifyAccount(r.Context(), h.identity, req.TeacherID); err != nil {
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

	win, err := h.svc.Declare(r.Context(), req.TeacherID, availability.Interval{Start: start, End: end}, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, windowToItem(win))
}

func (h *AvailabilityHandler) Query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	teacherID := strings.TrimSpace(r.URL.Query().Get("teacher_id"))
	if teacherID == "" {
		writeKind(w, model.ErrorKindInvalidRange, "teacher_id is required")
		return
	}
	from, err := timeutil.ToInstant(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := timeutil.ToInstant(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}

	windows, err := h.svc.Query(r.Context(), teacherID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]windowItem, 0, len(windows))
	for _, win := range windows {
		items = append(items, windowToItem(win))
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": items})
}

type toggleAvailabilityRequest struct {
	TeacherID   string `json:"teacher_id"`
	WindowID    string `json:"window_id"`
	IsAvailable bool   `json:"is_available"`
}

func (h *AvailabilityHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req toggleAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	if strings.TrimSpace(req.WindowID) == "" {
		writeKind(w, model.ErrorKindInvalidRange, "window_id is required")
		return
	}
	if err := verifyAccount(r.Context(), h.identity, strings.TrimSpace(req.TeacherID)); err != nil {
		writeError(w, err)
		return
	}

	win, err := h.svc.SetAvailable(r.Context(), req.WindowID, req.IsAvailable)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, windowToItem(win))
}

type deleteAvailabilityRequest struct {
	TeacherID string `json:"teacher_id"`
	WindowID  string `json:"window_id"`
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeKind(w, model.ErrorKindInvalidRange, "invalid json body")
		return
	}
	if strings.TrimSpace(req.WindowID) == "" {
		writeKind(w, model.ErrorKindInvalidRange, "window_id is required")
		return
	}
	if err := verifyAccount(r.Context(), h.identity, strings.TrimSpace(req.TeacherID)); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), req.WindowID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"window_id": req.WindowID, "deleted": true})
}
