package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/schedule"
)

type SlotHandler struct {
	svc     *schedule.SlotService
	refresh schedule.RefreshPolicy
	logger  *slog.Logger
}

func NewSlotHandler(svc *schedule.SlotService, refresh schedule.RefreshPolicy, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{svc: svc, refresh: refresh, logger: logger}
}

type slotItem struct {
	SlotID       string `json:"slot_id"`
	TeacherID    string `json:"teacher_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	DisplayDate  string `json:"display_date"`
	DisplayStart string `json:"display_start"`
	DisplayEnd   string `json:"display_end"`
}

type slotsResponse struct {
	Slots   []slotItem     `json:"slots"`
	Refresh refreshDetails `json:"refresh"`
}

type refreshDetails struct {
	IntervalSeconds int `json:"interval_seconds"`
	DebounceSeconds int `json:"debounce_seconds"`
}

// List returns the free slots of a teacher's day projected into the viewer's
// zone, plus the polling cadence the client should follow when re-querying.
func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	teacherID := strings.TrimSpace(q.Get("teacher_id"))
	if teacherID == "" {
		writeKind(w, model.ErrorKindInvalidRange, "teacher_id is required")
		return
	}
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	slots, err := h.svc.GetSlots(r.Context(), teacherID, date, q.Get("tz"))
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			SlotID:       s.ID,
			TeacherID:    s.TeacherID,
			StartTime:    s.StartTime.UTC().Format(time.RFC3339),
			EndTime:      s.EndTime.UTC().Format(time.RFC3339),
			DisplayDate:  s.DisplayDate,
			DisplayStart: s.DisplayStart,
			DisplayEnd:   s.DisplayEnd,
		})
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		Slots: items,
		Refresh: refreshDetails{
			IntervalSeconds: int(h.refresh.Interval / time.Second),
			DebounceSeconds: int(h.refresh.Debounce / time.Second),
		},
	})
}
