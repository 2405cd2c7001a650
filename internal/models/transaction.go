// Package models defines the core domain entities for the demand forecasting
// and drift monitoring system: historical POS transactions, games, streamed
// sale events, demand forecasts, drift signals, and backtest results.
// All types that cross to presentation layers carry stable json tags.
//
// Terminology:
//   - Time window: a 10-minute bucket of minutes from puck drop, the unit of
//     temporal granularity for both forecasting and drift detection.
//   - Archetype: one of three crowd-composition classes (beer_crowd, family,
//     mixed) derived from historical beer share of volume.
package models

import (
	"errors"
	"time"
)

// Crowd archetypes
const (
	ArchetypeBeerCrowd = "beer_crowd"
	ArchetypeFamily    = "family"
	ArchetypeMixed     = "mixed"
)

// Game phases by minutes from puck drop
const (
	PhasePreGame  = "pre_game"
	PhaseP1       = "P1"
	PhaseINT1     = "INT1"
	PhaseP2       = "P2"
	PhaseINT2     = "INT2"
	PhaseP3       = "P3"
	PhasePostGame = "post_game"
)

// Transaction is one point-of-sale line from a historical game,
// immutable once ingested. The loader supplies the derived time fields.
type Transaction struct {
	Timestamp        time.Time `json:"timestamp"`
	GameDate         string    `json:"game_date"` // YYYY-MM-DD, the game key
	Stand            string    `json:"stand"`
	Item             string    `json:"item"`
	Category         string    `json:"category"` // normalized category
	Qty              int       `json:"qty"`
	MinsFromPuckDrop float64   `json:"mins_from_puck_drop"` // negative = pre-game
	TimeWindow       int       `json:"time_window"`
}

// Validate checks that all transaction fields are valid
func (t *Transaction) Validate() error {
	if t.GameDate == "" {
		return errors.New("transaction game date must not be empty")
	}
	if t.Stand == "" {
		return errors.New("transaction stand must not be empty")
	}
	if t.Item == "" {
		return errors.New("transaction item must not be empty")
	}
	if t.Qty <= 0 {
		return errors.New("transaction qty must be positive")
	}
	return nil
}

// SaleEvent is a single streamed POS event during a live game, the unit
// the drift detector ingests.
type SaleEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	Stand            string    `json:"stand"`
	Item             string    `json:"item"`
	Category         string    `json:"category"`
	Qty              int       `json:"qty"`
	MinsFromPuckDrop float64   `json:"mins_from_puck_drop"`
	TimeWindow       int       `json:"time_window"`
}

// Validate checks that all sale event fields are valid
func (e *SaleEvent) Validate() error {
	if e.Stand == "" {
		return errors.New("event stand must not be empty")
	}
	if e.Item == "" {
		return errors.New("event item must not be empty")
	}
	if e.Qty <= 0 {
		return errors.New("event qty must be positive")
	}
	return nil
}

// WindowOf buckets minutes from puck drop into a 10-minute time window,
// flooring toward negative infinity so -1min lands in window -10.
func WindowOf(minsFromPuckDrop float64) int {
	w := int(minsFromPuckDrop / 10)
	if minsFromPuckDrop < 0 && float64(w*10) != minsFromPuckDrop {
		w--
	}
	return w * 10
}

// PhaseOf maps minutes from puck drop to a game phase using the standard
// WHL timeline: 20-minute periods with ~18-minute intermissions.
func PhaseOf(minsFromPuckDrop float64) string {
	switch {
	case minsFromPuckDrop < 0:
		return PhasePreGame
	case minsFromPuckDrop < 20:
		return PhaseP1
	case minsFromPuckDrop < 38:
		return PhaseINT1
	case minsFromPuckDrop < 58:
		return PhaseP2
	case minsFromPuckDrop < 76:
		return PhaseINT2
	case minsFromPuckDrop < 96:
		return PhaseP3
	default:
		return PhasePostGame
	}
}
