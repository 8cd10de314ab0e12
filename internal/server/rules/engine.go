// Package rules evaluates deterministic health rules over a short window of
// readings. Evaluation is pure: no I/O, no clock.
package rules

import (
	"encoding/json"
	"slices"

	"github.com/dmitrijs2005/careconnect/internal/server/models"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelCritical Level = "critical"
)

const (
	RuleHRLow       = "hr_low"
	RuleHRHigh      = "hr_high"
	RuleHRRapidRise = "hr_rapid_rise"
	RuleBPStage2    = "bp_stage2"
	RuleBPStage1    = "bp_stage1"
)

const (
	hrLowBelow      = 50.0
	hrHighAbove     = 110.0
	hrRiseAbove     = 30.0
	hrTrendReadings = 5

	bpStage2Systolic  = 140.0
	bpStage2Diastolic = 90.0
	bpStage1Systolic  = 130.0
	bpStage1Diastolic = 80.0
)

// Finding is one fired rule.
type Finding struct {
	RuleID  string `json:"ruleId"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Evaluate runs every rule over readings, which must be ordered most recent
// first (the order the readings repository returns). Threshold rules look at
// the most recent reading of their metric; the trend rule looks at the last
// five heart-rate readings in chronological order. Findings come back in a
// fixed order: heart rate, then blood pressure.
func Evaluate(readings []*models.HealthReading) []Finding {
	var hr []float64
	var bp []models.BloodPressure

	for _, r := range readings {
		if r == nil {
			continue
		}
		switch r.Metric {
		case models.MetricHeartRate:
			if r.ValueNum != nil {
				hr = append(hr, *r.ValueNum)
			}
		case models.MetricBloodPressure:
			if p, ok := decodeBP(r.ValueJSON); ok {
				bp = append(bp, p)
			}
		}
	}

	out := []Finding{}
	out = append(out, heartRate(hr)...)
	out = append(out, bloodPressure(bp)...)
	return out
}

// heartRate expects values most recent first.
func heartRate(values []float64) []Finding {
	if len(values) == 0 {
		return nil
	}
	var out []Finding

	switch latest := values[0]; {
	case latest < hrLowBelow:
		out = append(out, Finding{RuleID: RuleHRLow, Level: LevelWarn, Message: "low heart rate"})
	case latest > hrHighAbove:
		out = append(out, Finding{RuleID: RuleHRHigh, Level: LevelWarn, Message: "high heart rate"})
	}

	window := slices.Clone(values[:min(len(values), hrTrendReadings)])
	slices.Reverse(window)
	if len(window) >= 2 && window[len(window)-1]-window[0] > hrRiseAbove {
		out = append(out, Finding{RuleID: RuleHRRapidRise, Level: LevelCritical, Message: "rapid HR increase"})
	}
	return out
}

// bloodPressure expects values most recent first.
func bloodPressure(values []models.BloodPressure) []Finding {
	if len(values) == 0 {
		return nil
	}
	p := values[0]
	switch {
	case p.Systolic >= bpStage2Systolic || p.Diastolic >= bpStage2Diastolic:
		return []Finding{{RuleID: RuleBPStage2, Level: LevelCritical, Message: "stage 2 hypertension suspected"}}
	case p.Systolic >= bpStage1Systolic || p.Diastolic >= bpStage1Diastolic:
		return []Finding{{RuleID: RuleBPStage1, Level: LevelWarn, Message: "stage 1 hypertension range"}}
	}
	return nil
}

func decodeBP(raw json.RawMessage) (models.BloodPressure, bool) {
	if len(raw) == 0 {
		return models.BloodPressure{}, false
	}
	var v struct {
		Systolic  *float64 `json:"systolic"`
		Diastolic *float64 `json:"diastolic"`
	}
	if err := json.Unmarshal(raw, &v); err != nil || v.Systolic == nil || v.Diastolic == nil {
		return models.BloodPressure{}, false
	}
	return models.BloodPressure{Systolic: *v.Systolic, Diastolic: *v.Diastolic}, true
}
