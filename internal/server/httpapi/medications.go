package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

type medicationRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Dosage string `json:"dosage" validate:"max=200"`
	Notes  string `json:"notes" validate:"max=2000"`
}

type medicationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type scheduleRequest struct {
	MedicationID string   `json:"medicationId" validate:"required"`
	Timezone     string   `json:"timezone"`
	Times        []string `json:"times" validate:"required,min=1"`
	DaysOfWeek   []int    `json:"daysOfWeek" validate:"dive,min=0,max=6"`
	StartDate    string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string   `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

type scheduleResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medicationId"`
	Timezone     string    `json:"timezone"`
	Times        []string  `json:"times"`
	DaysOfWeek   []int     `json:"daysOfWeek,omitempty"`
	StartDate    string    `json:"startDate"`
	EndDate      string    `json:"endDate,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type generateRequest struct {
	Days int `json:"days" validate:"min=1,max=90"`
}

type reminderResponse struct {
	ID         string     `json:"id"`
	ScheduleID string     `json:"scheduleId"`
	DueAt      time.Time  `json:"dueAt"`
	Status     string     `json:"status"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	AckAt      *time.Time `json:"ackAt,omitempty"`
}

type reminderUpdateRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=ack"`
}

func toMedicationResponse(m *models.Medication) medicationResponse {
	return medicationResponse{ID: m.ID, Name: m.Name, Dosage: m.Dosage, Notes: m.Notes, CreatedAt: m.CreatedAt}
}

func toScheduleResponse(s *models.MedicationSchedule) scheduleResponse {
	out := scheduleResponse{
		ID:           s.ID,
		MedicationID: s.MedicationID,
		Timezone:     s.Timezone,
		Times:        s.Rule.Times,
		DaysOfWeek:   s.Rule.DaysOfWeek,
		StartDate:    s.StartDate.Format(dateLayout),
		CreatedAt:    s.CreatedAt,
	}
	if s.EndDate != nil {
		out.EndDate = s.EndDate.Format(dateLayout)
	}
	return out
}

func toReminderResponse(r *models.Reminder) reminderResponse {
	return reminderResponse{
		ID:         r.ID,
		ScheduleID: r.ScheduleID,
		DueAt:      r.DueAt,
		Status:     string(r.Status),
		SentAt:     r.SentAt,
		AckAt:      r.AckAt,
	}
}

// CreateMedication handles POST /medications
func (s *Server) CreateMedication(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if !s.decode(w, r, &req) {
		return
	}

	m, err := s.care.CreateMedication(r.Context(), currentUser(r), &models.Medication{
		Name:   req.Name,
		Dosage: req.Dosage,
		Notes:  req.Notes,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toMedicationResponse(m))
}

// ListMedications handles GET /medications
func (s *Server) ListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := s.care.ListMedications(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]medicationResponse, 0, len(meds))
	for _, m := range meds {
		out = append(out, toMedicationResponse(m))
	}
	respondJSON(w, http.StatusOK, out)
}

// DeleteMedication handles DELETE /medications/{id}
func (s *Server) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	if err := s.care.DeleteMedication(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSchedule handles POST /medications/schedules
func (s *Server) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !s.decode(w, r, &req) {
		return
	}

	// layouts were checked by the validator
	start, _ := time.Parse(dateLayout, req.StartDate)
	in := services.ScheduleInput{
		MedicationID: req.MedicationID,
		Timezone:     req.Timezone,
		Times:        req.Times,
		DaysOfWeek:   req.DaysOfWeek,
		StartDate:    start,
	}
	if req.EndDate != "" {
		end, _ := time.Parse(dateLayout, req.EndDate)
		in.EndDate = &end
	}

	sched, err := s.reminders.CreateSchedule(r.Context(), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toScheduleResponse(sched))
}

// ListSchedules handles GET /medications/schedules
func (s *Server) ListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := s.reminders.ListSchedules(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]scheduleResponse, 0, len(list))
	for _, sched := range list {
		out = append(out, toScheduleResponse(sched))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetSchedule handles GET /medications/schedules/{id}
func (s *Server) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.reminders.GetSchedule(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toScheduleResponse(sched))
}

// DeleteSchedule handles DELETE /medications/schedules/{id}
func (s *Server) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.reminders.DeleteSchedule(r.Context(), chi.URLParam(r, "id"), currentUser(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateReminders handles POST /medications/schedules/{id}/reminders/generate
func (s *Server) GenerateReminders(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}

	n, err := s.reminders.Generate(r.Context(), chi.URLParam(r, "id"), currentUser(r), req.Days)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"generated": n})
}

// ListReminders handles GET /medications/reminders?from&to
//
// from and to are RFC 3339 instants; either may be omitted.
func (s *Server) ListReminders(w http.ResponseWriter, r *http.Request) {
	f := models.ReminderFilter{UserID: currentUser(r)}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := r.URL.Query().Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, p.name+" must be an RFC 3339 timestamp")
			return
		}
		*p.dst = &t
	}

	list, err := s.reminders.ListReminders(r.Context(), f)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]reminderResponse, 0, len(list))
	for _, rem := range list {
		out = append(out, toReminderResponse(rem))
	}
	respondJSON(w, http.StatusOK, out)
}

// UpdateReminder handles PATCH /medications/reminders
func (s *Server) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	rem, err := s.reminders.Acknowledge(r.Context(), req.ID, currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toReminderResponse(rem))
}

// RunNotifier handles POST /medications/notify/run
func (s *Server) RunNotifier(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		respondError(w, http.StatusServiceUnavailable, "notifier disabled")
		return
	}

	// a started cycle completes even if the caller goes away
	res, err := s.poller.RunOnce(context.WithoutCancel(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
