package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/server/ai"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/rules"
	"github.com/dmitrijs2005/careconnect/internal/server/services"
)

// default lookback of GET /health/readings
const defaultReadingsWindow = 24 * time.Hour

type readingRequest struct {
	Metric    string          `json:"metric" validate:"required,max=64"`
	Value     *float64        `json:"value"`
	ValueJSON json.RawMessage `json:"valueJson"`
	Unit      string          `json:"unit" validate:"max=32"`
	TakenAt   *time.Time      `json:"takenAt"`
}

type readingResponse struct {
	ID        string          `json:"id"`
	Metric    string          `json:"metric"`
	Value     *float64        `json:"value,omitempty"`
	ValueJSON json.RawMessage `json:"valueJson,omitempty"`
	Unit      string          `json:"unit,omitempty"`
	TakenAt   time.Time       `json:"takenAt"`
}

type analyzeRequest struct {
	WindowMinutes int `json:"windowMinutes" validate:"min=0,max=10080"`
}

type analyzeResponse struct {
	AI    *ai.Analysis    `json:"ai"`
	Rules []rules.Finding `json:"rules"`
}

func toReadingResponse(h *models.HealthReading) readingResponse {
	return readingResponse{
		ID:        h.ID,
		Metric:    h.Metric,
		Value:     h.ValueNum,
		ValueJSON: h.ValueJSON,
		Unit:      h.Unit,
		TakenAt:   h.TakenAt,
	}
}

// AddReading handles POST /health/readings
func (s *Server) AddReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if !s.decode(w, r, &req) {
		return
	}

	in := services.ReadingInput{
		Metric:    req.Metric,
		Value:     req.Value,
		ValueJSON: req.ValueJSON,
		Unit:      req.Unit,
	}
	if req.TakenAt != nil {
		in.TakenAt = *req.TakenAt
	}

	reading, err := s.health.AddReading(r.Context(), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toReadingResponse(reading))
}

// ListReadings handles GET /health/readings?since=
func (s *Server) ListReadings(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-defaultReadingsWindow)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	list, err := s.health.RecentReadings(r.Context(), currentUser(r), since)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]readingResponse, 0, len(list))
	for _, h := range list {
		out = append(out, toReadingResponse(h))
	}
	respondJSON(w, http.StatusOK, out)
}

// Analyze handles POST /health/analyze
//
// An empty body or windowMinutes 0 analyzes the default window.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}

	res, err := s.health.Analyze(r.Context(), currentUser(r), req.WindowMinutes)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := analyzeResponse{AI: res.AI, Rules: res.Rules}
	if out.Rules == nil {
		out.Rules = []rules.Finding{}
	}
	respondJSON(w, http.StatusOK, out)
}
