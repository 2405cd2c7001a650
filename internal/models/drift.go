package models

import (
	"encoding/json"
	"math"
)

// Drift types
const (
	DriftTypeVolume = "volume"
	DriftTypeMix    = "mix"
)

// Drift severities derived from signal magnitude
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Drift directions
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// Severity cut points on absolute drift magnitude
const (
	severityCriticalFloor = 0.40
	severityWarningFloor  = 0.25
)

// DriftSignal is an immutable typed deviation between streamed actuals and
// the forecast, scoped to the whole venue, one stand, or one item.
type DriftSignal struct {
	ID         string  `json:"id"`
	DriftType  string  `json:"drift_type"` // volume | mix
	Scope      string  `json:"scope"`      // "overall", stand display name, or item
	Magnitude  float64 `json:"magnitude"`  // signed fractional deviation
	Direction  string  `json:"direction"`  // above | below
	TimeWindow int     `json:"time_window"`
	Detail     string  `json:"detail"`
}

// Severity derives the alert tier from the signal's absolute magnitude.
func (s DriftSignal) Severity() string {
	absMag := math.Abs(s.Magnitude)
	switch {
	case absMag >= severityCriticalFloor:
		return SeverityCritical
	case absMag >= severityWarningFloor:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// MarshalJSON includes the derived severity so reports cross to presentation
// layers verbatim.
func (s DriftSignal) MarshalJSON() ([]byte, error) {
	type alias DriftSignal
	return json.Marshal(struct {
		alias
		Severity string `json:"severity"`
	}{
		alias:    alias(s),
		Severity: s.Severity(),
	})
}

// DriftReport aggregates the signals and raw per-entity drift for one
// completed time window.
type DriftReport struct {
	TimeWindow         int                `json:"time_window"`
	Signals            []DriftSignal      `json:"signals"`
	OverallVolumeDrift float64            `json:"overall_volume_drift"`
	StandDrifts        map[string]float64 `json:"stand_drifts"`
	ItemDrifts         map[string]float64 `json:"item_drifts"`
	CategoryMixShare   map[string]float64 `json:"category_mix_share,omitempty"` // actual share of window volume per category
}

// HasSignificantDrift reports whether any signal is warning or critical.
func (r *DriftReport) HasSignificantDrift() bool {
	for _, s := range r.Signals {
		if sev := s.Severity(); sev == SeverityWarning || sev == SeverityCritical {
			return true
		}
	}
	return false
}

// MarshalJSON includes the derived significance flag.
func (r *DriftReport) MarshalJSON() ([]byte, error) {
	type alias DriftReport
	return json.Marshal(struct {
		*alias
		HasSignificantDrift bool `json:"has_significant_drift"`
	}{
		alias:               (*alias)(r),
		HasSignificantDrift: r.HasSignificantDrift(),
	})
}

// StandLoad is one row of the per-stand redistribution analysis: how one
// item at one stand is tracking against forecast, with an optional suggestion
// to redirect demand toward an underloaded stand selling the same item.
type StandLoad struct {
	Stand      string  `json:"stand"`
	Item       string  `json:"item"`
	Actual     int     `json:"actual"`
	Forecast   int     `json:"forecast"`
	Drift      float64 `json:"drift"`
	Overloaded bool    `json:"overloaded"`
	Suggestion string  `json:"suggestion,omitempty"`
}

// DriftSummary aggregates a whole game's drift history for end-of-game
// reporting.
type DriftSummary struct {
	TotalWindows     int     `json:"total_windows"`
	WindowsWithDrift int     `json:"windows_with_drift"`
	TotalSignals     int     `json:"total_signals"`
	CriticalSignals  int     `json:"critical_signals"`
	WarningSignals   int     `json:"warning_signals"`
	CumulativeDrift  float64 `json:"cumulative_drift"`
	TotalActual      int     `json:"total_actual"`
	TotalForecast    int     `json:"total_forecast"`
}
