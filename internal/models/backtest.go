package models

import (
	"encoding/json"
	"fmt"
)

// GameResult scores one held-out game from the leave-one-out backtest.
// Immutable, produced once per backtest run.
type GameResult struct {
	GameDate      string  `json:"game_date"`
	Opponent      string  `json:"opponent"`
	Attendance    int     `json:"attendance"`
	Archetype     string  `json:"archetype"`
	ActualTotal   int     `json:"actual_total"`
	ForecastTotal int     `json:"forecast_total"`
	VolumeError   float64 `json:"volume_error"` // signed, (forecast-actual)/actual
	StandMAPE     float64 `json:"stand_mape"`
	ItemMAPE      float64 `json:"item_mape"`
	PrepCoverage  float64 `json:"prep_coverage"` // fraction of demanded items with prep >= actual
	WasteUnits    int     `json:"waste_units"`
	StockoutUnits int     `json:"stockout_units"`
}

// MarshalJSON adds a formatted percentage rendering of the volume error.
func (r GameResult) MarshalJSON() ([]byte, error) {
	type alias GameResult
	return json.Marshal(struct {
		alias
		VolumeErrorPct string `json:"volume_error_pct"`
	}{
		alias:          alias(r),
		VolumeErrorPct: fmt.Sprintf("%+.1f%%", r.VolumeError*100),
	})
}
