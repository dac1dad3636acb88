package types

import "time"

type AnomalyKind string

const (
	AnomalySpeed        AnomalyKind = "speed"
	AnomalySpoofing     AnomalyKind = "spoofing"
	AnomalyUnusualTime  AnomalyKind = "unusual_time"
	AnomalyRapidToggle  AnomalyKind = "rapid_toggle"
	AnomalyLongDuration AnomalyKind = "long_work"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Evidence carries whatever numbers and events triggered a report. Only the
// fields relevant to the report kind are set.
type Evidence struct {
	EventIDs   []string      `json:"event_ids,omitempty"`
	Hour       *int          `json:"hour,omitempty"`
	Gap        time.Duration `json:"gap_ns,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	DistanceKm float64       `json:"distance_km,omitempty"`
	SpeedKmh   float64       `json:"speed_kmh,omitempty"`
	Accuracy   *float64      `json:"accuracy,omitempty"`
}

// AnomalyReport is advisory output; the ledger produces it but never stores it.
type AnomalyReport struct {
	Kind     AnomalyKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
	Evidence Evidence    `json:"evidence"`
}
