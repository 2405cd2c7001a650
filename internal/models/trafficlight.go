package models

// Status is the three-state operational traffic light.
type Status string

// Traffic light states
const (
	StatusGreen  Status = "green"
	StatusYellow Status = "yellow"
	StatusRed    Status = "red"
)

// Priority orders statuses worst-first for operator attention.
func (s Status) Priority() int {
	switch s {
	case StatusRed:
		return 0
	case StatusYellow:
		return 1
	default:
		return 2
	}
}

// Trend labels for a stand's recent drift trajectory
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
)

// StandStatus is one stand's traffic light for a time window.
type StandStatus struct {
	Stand       string  `json:"stand"` // display name
	Status      Status  `json:"status"`
	DriftPct    float64 `json:"drift_pct"`
	ForecastQty int     `json:"forecast_qty"`
	ActualQty   int     `json:"actual_qty"`
	Trend       string  `json:"trend"`
}

// OverallStatus is the venue-wide traffic light view for one time window,
// with per-stand statuses sorted worst-first.
type OverallStatus struct {
	TimeWindow      int           `json:"time_window"`
	OverallStatus   Status        `json:"overall_status"`
	OverallDrift    float64       `json:"overall_drift"`
	CumulativeDrift float64       `json:"cumulative_drift"`
	Stands          []StandStatus `json:"stands"`
}
