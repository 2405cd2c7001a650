package models

import (
	"errors"
)

// Game is a single scheduled event keyed uniquely by date. Enrichment fields
// (weather, opponent metadata, archetype, aggregate stats) are fixed at
// enrichment time and read-only inputs to forecasting.
type Game struct {
	Date       string `json:"date"` // YYYY-MM-DD, unique key
	Opponent   string `json:"opponent"`
	DayOfWeek  string `json:"day_of_week"` // "Mon".."Sun"
	PuckDrop   string `json:"puck_drop"`   // "HH:MM"
	Attendance int    `json:"attendance"`  // 0 until scanned
	Season     string `json:"season,omitempty"`
	Note       string `json:"note,omitempty"`
	IsPlayoff  bool   `json:"is_playoff"`
	IsPromo    bool   `json:"is_promo"`
	PromoType  string `json:"promo_type,omitempty"`

	// Weather enrichment (supplied by the external weather collaborator)
	TempMean   float64 `json:"temp_mean"`
	TempMax    float64 `json:"temp_max"`
	PrecipMM   float64 `json:"precip_mm"`
	WindMaxKmh float64 `json:"wind_max_kmh"`

	// Derived enrichment
	PuckDropHour       int     `json:"puck_drop_hour"`
	OpponentDistanceKm float64 `json:"opponent_distance_km"`
	OpponentDivision   string  `json:"opponent_division"`
	IsWeekend          bool    `json:"is_weekend"`
	IsHoliday          bool    `json:"is_holiday"`
	Archetype          string  `json:"archetype"`

	// Per-game aggregate stats
	TotalQty  int     `json:"total_qty"`
	TotalTxns int     `json:"total_txns"`
	QtyPerCap float64 `json:"qty_per_cap"`
}

// Validate checks that all game fields are valid
func (g *Game) Validate() error {
	if g.Date == "" {
		return errors.New("game date must not be empty")
	}
	if g.Opponent == "" {
		return errors.New("game opponent must not be empty")
	}
	if g.Attendance < 0 {
		return errors.New("game attendance must not be negative")
	}
	if g.Archetype != "" &&
		g.Archetype != ArchetypeBeerCrowd &&
		g.Archetype != ArchetypeFamily &&
		g.Archetype != ArchetypeMixed {
		return errors.New("game archetype must be beer_crowd, family, or mixed")
	}
	return nil
}

// Context extracts the forecast-relevant attributes of a game.
func (g *Game) Context() GameContext {
	return GameContext{
		Attendance:   g.Attendance,
		PuckDropHour: g.PuckDropHour,
		IsPlayoff:    g.IsPlayoff,
		IsPromo:      g.IsPromo,
		PromoType:    g.PromoType,
		TempMean:     g.TempMean,
		DayOfWeek:    g.DayOfWeek,
	}
}
