// Package profile builds historical demand curves from enriched transaction
// and game tables. Curves are indexed by crowd archetype and 10-minute time
// window at three granularities (stand, item, stand×item), plus category-mix
// shares per game phase and per-capita stand curves.
//
// The central invariant: avg_qty divides each group's total quantity by the
// archetype's full distinct game count, not the count of games where the
// entity sold. Sparse items are diluted toward zero instead of inflated.
package profile

import (
	"math"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// EntityWindow keys a curve point by entity (stand or item) and time window.
type EntityWindow struct {
	Entity string
	Window int
}

// StandItemWindow keys a granular curve point.
type StandItemWindow struct {
	Stand  string
	Item   string
	Window int
}

// PhaseCategory keys a category-mix share.
type PhaseCategory struct {
	Phase    string
	Category string
}

// CurvePoint is one aggregated curve entry.
type CurvePoint struct {
	TotalQty  int     `json:"total_qty"`
	GameCount int     `json:"game_count"` // distinct games where the entity sold in this window
	AvgQty    float64 `json:"avg_qty"`    // TotalQty / archetype distinct game count
}

// MixPoint is one category-mix entry, normalized to percent of phase total.
type MixPoint struct {
	TotalQty int     `json:"total_qty"`
	MixPct   float64 `json:"mix_pct"`
}

// ProfileSet holds all historical curves plus the enriched games table.
// It is immutable once built; Build is a pure function over its inputs and
// safe to call concurrently for different datasets.
type ProfileSet struct {
	StandCurves     map[string]map[EntityWindow]CurvePoint
	ItemCurves      map[string]map[EntityWindow]CurvePoint
	StandItemCurves map[string]map[StandItemWindow]CurvePoint
	CategoryMix     map[string]map[PhaseCategory]MixPoint
	PerCapCurves    map[string]map[EntityWindow]float64
	Games           []models.Game
	ArchGameCounts  map[string]int
}

// Build constructs profile curves from pre-filtered data. The caller controls
// which games are included, which is what makes leave-one-out rebuilds work.
func Build(transactions []models.Transaction, games []models.Game) *ProfileSet {
	archByDate := make(map[string]string, len(games))
	attByDate := make(map[string]int, len(games))
	archGameCounts := make(map[string]int)
	validAttCounts := make(map[string]int)

	for _, g := range games {
		arch := g.Archetype
		if arch == "" {
			arch = models.ArchetypeMixed
		}
		archByDate[g.Date] = arch
		attByDate[g.Date] = g.Attendance
		archGameCounts[arch]++
		if g.Attendance > 0 {
			validAttCounts[arch]++
		}
	}

	ps := &ProfileSet{
		StandCurves:     make(map[string]map[EntityWindow]CurvePoint),
		ItemCurves:      make(map[string]map[EntityWindow]CurvePoint),
		StandItemCurves: make(map[string]map[StandItemWindow]CurvePoint),
		CategoryMix:     make(map[string]map[PhaseCategory]MixPoint),
		PerCapCurves:    make(map[string]map[EntityWindow]float64),
		Games:           games,
		ArchGameCounts:  archGameCounts,
	}

	standAcc := make(map[string]map[EntityWindow]*acc)
	itemAcc := make(map[string]map[EntityWindow]*acc)
	standItemAcc := make(map[string]map[StandItemWindow]*acc)
	mixAcc := make(map[string]map[PhaseCategory]int)
	// Per-capita: per (arch, stand, window, game) quantity, divided by that
	// game's attendance before averaging across games.
	perCapGame := make(map[string]map[EntityWindow]map[string]int)

	bump := func(a *acc, qty int, date string) {
		a.total += qty
		a.dates[date] = struct{}{}
	}

	for _, t := range transactions {
		arch, ok := archByDate[t.GameDate]
		if !ok {
			arch = models.ArchetypeMixed
		}

		sw := EntityWindow{Entity: t.Stand, Window: t.TimeWindow}
		if standAcc[arch] == nil {
			standAcc[arch] = make(map[EntityWindow]*acc)
		}
		if standAcc[arch][sw] == nil {
			standAcc[arch][sw] = &acc{dates: make(map[string]struct{})}
		}
		bump(standAcc[arch][sw], t.Qty, t.GameDate)

		iw := EntityWindow{Entity: t.Item, Window: t.TimeWindow}
		if itemAcc[arch] == nil {
			itemAcc[arch] = make(map[EntityWindow]*acc)
		}
		if itemAcc[arch][iw] == nil {
			itemAcc[arch][iw] = &acc{dates: make(map[string]struct{})}
		}
		bump(itemAcc[arch][iw], t.Qty, t.GameDate)

		siw := StandItemWindow{Stand: t.Stand, Item: t.Item, Window: t.TimeWindow}
		if standItemAcc[arch] == nil {
			standItemAcc[arch] = make(map[StandItemWindow]*acc)
		}
		if standItemAcc[arch][siw] == nil {
			standItemAcc[arch][siw] = &acc{dates: make(map[string]struct{})}
		}
		bump(standItemAcc[arch][siw], t.Qty, t.GameDate)

		pc := PhaseCategory{Phase: models.PhaseOf(t.MinsFromPuckDrop), Category: t.Category}
		if mixAcc[arch] == nil {
			mixAcc[arch] = make(map[PhaseCategory]int)
		}
		mixAcc[arch][pc] += t.Qty

		if attByDate[t.GameDate] > 0 {
			if perCapGame[arch] == nil {
				perCapGame[arch] = make(map[EntityWindow]map[string]int)
			}
			if perCapGame[arch][sw] == nil {
				perCapGame[arch][sw] = make(map[string]int)
			}
			perCapGame[arch][sw][t.GameDate] += t.Qty
		}
	}

	for arch, groups := range standAcc {
		ps.StandCurves[arch] = finalizeCurves(groups, archGameCounts[arch])
	}
	for arch, groups := range itemAcc {
		ps.ItemCurves[arch] = finalizeCurves(groups, archGameCounts[arch])
	}
	for arch, groups := range standItemAcc {
		out := make(map[StandItemWindow]CurvePoint, len(groups))
		for key, a := range groups {
			out[key] = CurvePoint{
				TotalQty:  a.total,
				GameCount: len(a.dates),
				AvgQty:    avgQty(a.total, archGameCounts[arch]),
			}
		}
		ps.StandItemCurves[arch] = out
	}

	for arch, groups := range mixAcc {
		phaseTotals := make(map[string]int)
		for pc, total := range groups {
			phaseTotals[pc.Phase] += total
		}
		out := make(map[PhaseCategory]MixPoint, len(groups))
		for pc, total := range groups {
			pct := 0.0
			if pt := phaseTotals[pc.Phase]; pt > 0 {
				pct = round1(float64(total) / float64(pt) * 100)
			}
			out[pc] = MixPoint{TotalQty: total, MixPct: pct}
		}
		ps.CategoryMix[arch] = out
	}

	for arch, groups := range perCapGame {
		out := make(map[EntityWindow]float64, len(groups))
		denom := validAttCounts[arch]
		if denom == 0 {
			continue
		}
		for key, byGame := range groups {
			var sum float64
			for date, qty := range byGame {
				sum += float64(qty) / float64(attByDate[date])
			}
			out[key] = sum / float64(denom)
		}
		ps.PerCapCurves[arch] = out
	}

	return ps
}

// acc accumulates a group's total quantity plus the distinct game dates
// contributing to it.
type acc struct {
	total int
	dates map[string]struct{}
}

func finalizeCurves(groups map[EntityWindow]*acc, archCount int) map[EntityWindow]CurvePoint {
	out := make(map[EntityWindow]CurvePoint, len(groups))
	for key, a := range groups {
		out[key] = CurvePoint{
			TotalQty:  a.total,
			GameCount: len(a.dates),
			AvgQty:    avgQty(a.total, archCount),
		}
	}
	return out
}

func avgQty(total, archGameCount int) float64 {
	if archGameCount <= 0 {
		return 0
	}
	return round2(float64(total) / float64(archGameCount))
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round2(x float64) float64 { return math.Round(x*100) / 100 }

// StandCurvesFor returns the stand curves for an archetype, falling back to
// mixed when the archetype has no historical games. Every downstream lookup
// goes through this fallback, not just the first.
func (p *ProfileSet) StandCurvesFor(archetype string) map[EntityWindow]CurvePoint {
	if c := p.StandCurves[archetype]; len(c) > 0 {
		return c
	}
	return p.StandCurves[models.ArchetypeMixed]
}

// ItemCurvesFor returns the item curves for an archetype with mixed fallback.
func (p *ProfileSet) ItemCurvesFor(archetype string) map[EntityWindow]CurvePoint {
	if c := p.ItemCurves[archetype]; len(c) > 0 {
		return c
	}
	return p.ItemCurves[models.ArchetypeMixed]
}

// StandItemCurvesFor returns the granular curves for an archetype with mixed fallback.
func (p *ProfileSet) StandItemCurvesFor(archetype string) map[StandItemWindow]CurvePoint {
	if c := p.StandItemCurves[archetype]; len(c) > 0 {
		return c
	}
	return p.StandItemCurves[models.ArchetypeMixed]
}

// RefAttendance returns the mean attendance of the archetype's historical
// games, falling back to the mean over all games when the archetype has none.
// Games without a scanned attendance are skipped. Returns 0 when no game has
// attendance at all.
func (p *ProfileSet) RefAttendance(archetype string) float64 {
	sum, n := 0, 0
	for _, g := range p.Games {
		if g.Archetype == archetype && g.Attendance > 0 {
			sum += g.Attendance
			n++
		}
	}
	if n == 0 {
		for _, g := range p.Games {
			if g.Attendance > 0 {
				sum += g.Attendance
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
