// Package classifier assigns a cause to a window's drift and recommends prep
// actions. Two implementations exist: a remote reasoning service and a
// deterministic rule-based classifier used standalone or as failover, so a
// live session never blocks on an unreachable service.
package classifier

import (
	"context"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// Drift causes
const (
	CauseVolumeSurge         = "volume_surge"
	CauseVolumeDrop          = "volume_drop"
	CauseUntaggedPromo       = "untagged_promo"
	CauseStandRedistribution = "stand_redistribution"
	CauseWeatherEffect       = "weather_effect"
	CauseTimingShift         = "timing_shift"
	CauseNoise               = "noise"
)

// Prep actions
const (
	ActionIncreasePrep = "increase_prep"
	ActionDecreasePrep = "decrease_prep"
	ActionRedistribute = "redistribute"
	ActionHold         = "hold"
)

// Action is one recommended prep adjustment.
type Action struct {
	Stand          string `json:"stand,omitempty"`
	Item           string `json:"item,omitempty"`
	Action         string `json:"action"`
	QuantityChange int    `json:"quantity_change_pct,omitempty"`
}

// Result is a classified drift cause with recommended actions and an alert
// ready for the shift manager.
type Result struct {
	Cause      string   `json:"cause"`
	Confidence float64  `json:"confidence"`
	Actions    []Action `json:"actions"`
	AlertText  string   `json:"alert_text"`
}

// Input bundles everything a classifier may condition on.
type Input struct {
	Report          *models.DriftReport   `json:"report"`
	Opponent        string                `json:"opponent"`
	Attendance      int                   `json:"attendance"`
	Archetype       string                `json:"archetype"`
	CumulativeDrift float64               `json:"cumulative_drift"`
	Recent          []*models.DriftReport `json:"recent,omitempty"`
}

// DriftClassifier classifies the cause of a window's drift.
type DriftClassifier interface {
	Classify(ctx context.Context, in Input) (Result, error)
}
