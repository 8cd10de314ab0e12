package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/logging"
	"github.com/dmitrijs2005/careconnect/internal/server/ai"
	"github.com/dmitrijs2005/careconnect/internal/server/models"
	"github.com/dmitrijs2005/careconnect/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/careconnect/internal/server/rules"
)

const (
	DefaultAnalysisWindow = 60
	MaxAnalysisWindow     = 7 * 24 * 60
	analysisReadingLimit  = 200
)

// Analyst produces the narrative part of a health analysis.
type Analyst interface {
	AnalyzeHealth(ctx context.Context, readings []*models.HealthReading, findings []rules.Finding) (*ai.Analysis, error)
}

type ReadingInput struct {
	Metric    string
	Value     *float64
	ValueJSON json.RawMessage
	Unit      string
	TakenAt   time.Time
}

// AnalysisResult combines rule findings with the optional AI narrative. AI
// is nil when the collaborator is disabled or failed.
type AnalysisResult struct {
	AI    *ai.Analysis    `json:"ai"`
	Rules []rules.Finding `json:"rules"`
}

type HealthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	analyst     Analyst
	log         logging.Logger
	now         func() time.Time
}

func NewHealthService(db *sql.DB, m repomanager.RepositoryManager, a Analyst, l logging.Logger) *HealthService {
	return &HealthService{
		db:          db,
		repomanager: m,
		analyst:     a,
		log:         l.With("module", "health"),
		now:         time.Now,
	}
}

// AddReading stores a reading. Numeric metrics carry Value; blood pressure
// carries {systolic, diastolic} in ValueJSON.
func (s *HealthService) AddReading(ctx context.Context, userID string, in ReadingInput) (*models.HealthReading, error) {
	metric := strings.TrimSpace(in.Metric)
	if metric == "" {
		return nil, fmt.Errorf("%w: metric is required", common.ErrValidation)
	}
	if (in.Value == nil) == (len(in.ValueJSON) == 0) {
		return nil, fmt.Errorf("%w: exactly one of value and valueJson is required", common.ErrValidation)
	}
	if in.Value != nil && (math.IsNaN(*in.Value) || math.IsInf(*in.Value, 0)) {
		return nil, fmt.Errorf("%w: value must be a finite number", common.ErrValidation)
	}
	if metric == models.MetricBloodPressure {
		var bp models.BloodPressure
		if len(in.ValueJSON) == 0 || json.Unmarshal(in.ValueJSON, &bp) != nil || bp.Systolic <= 0 || bp.Diastolic <= 0 {
			return nil, fmt.Errorf("%w: blood pressure needs systolic and diastolic", common.ErrValidation)
		}
	} else if len(in.ValueJSON) > 0 && !json.Valid(in.ValueJSON) {
		return nil, fmt.Errorf("%w: valueJson is not valid JSON", common.ErrValidation)
	}

	takenAt := in.TakenAt
	if takenAt.IsZero() {
		takenAt = s.now()
	}

	return s.repomanager.Readings(s.db).Add(ctx, &models.HealthReading{
		UserID:    userID,
		Metric:    metric,
		ValueNum:  in.Value,
		ValueJSON: in.ValueJSON,
		Unit:      in.Unit,
		TakenAt:   takenAt.UTC(),
	})
}

// RecentReadings returns readings taken since, most recent first.
func (s *HealthService) RecentReadings(ctx context.Context, userID string, since time.Time) ([]*models.HealthReading, error) {
	return s.repomanager.Readings(s.db).Recent(ctx, userID, since, analysisReadingLimit)
}

// Analyze runs the rule engine over the last windowMinutes of readings and
// asks the analyst for a narrative. An analyst failure is logged and leaves
// AI empty; it never fails the analysis.
func (s *HealthService) Analyze(ctx context.Context, userID string, windowMinutes int) (*AnalysisResult, error) {
	if windowMinutes == 0 {
		windowMinutes = DefaultAnalysisWindow
	}
	if windowMinutes < 0 || windowMinutes > MaxAnalysisWindow {
		return nil, fmt.Errorf("%w: windowMinutes must be between 1 and %d", common.ErrValidation, MaxAnalysisWindow)
	}

	since := s.now().Add(-time.Duration(windowMinutes) * time.Minute)
	readings, err := s.RecentReadings(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	res := &AnalysisResult{Rules: rules.Evaluate(readings)}
	if s.analyst == nil {
		return res, nil
	}

	analysis, err := s.analyst.AnalyzeHealth(ctx, readings, res.Rules)
	switch {
	case errors.Is(err, ai.ErrDisabled):
		return res, nil
	case err != nil:
		s.log.Warn(ctx, "ai analysis failed", "user_id", userID, "error", err)
		return res, nil
	}
	res.AI = analysis
	return res, nil
}
