package models

import (
	"encoding/json"
	"time"
)

const (
	MetricHeartRate     = "heart_rate"
	MetricBloodPressure = "blood_pressure"
)

// HealthReading is immutable once written. Scalar metrics use ValueNum;
// structured ones (blood pressure) use ValueJSON.
type HealthReading struct {
	ID        string
	UserID    string
	Metric    string
	ValueNum  *float64
	ValueJSON json.RawMessage
	Unit      string
	TakenAt   time.Time
}

// BloodPressure is the ValueJSON payload of a blood_pressure reading.
type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}
