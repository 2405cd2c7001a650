// Package forecast turns historical demand curves into a per-window prep plan
// for one upcoming game: derive the expected crowd archetype, scale curves by
// attendance, apply temperature/promo/playoff adjustments, and derive
// conservative prep quantities from perishability tiers.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/profile"
)

// ErrUnknownGame is returned when a forecast is requested for a date that has
// no game in the historical table. This is a caller error, not a missing-data
// fallback case.
var ErrUnknownGame = errors.New("no game found for date")

// Generator produces demand forecasts. It is stateless apart from its
// configuration and safe for concurrent use.
type Generator struct {
	cfg *config.Config
}

// NewGenerator creates a forecast generator
func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg}
}

// DeriveArchetype predicts the crowd archetype from game inputs using a
// deterministic decision list; first match wins.
func DeriveArchetype(gc models.GameContext) string {
	weekendEvening := gc.DayOfWeek == "Fri" || gc.DayOfWeek == "Sat"
	coldWeekend := gc.DayOfWeek == "Sat" || gc.DayOfWeek == "Sun"

	switch {
	case gc.IsPlayoff:
		return models.ArchetypeBeerCrowd
	case gc.Attendance >= 3500 && gc.PuckDropHour >= 19 && weekendEvening:
		return models.ArchetypeBeerCrowd
	case gc.PuckDropHour < 17:
		return models.ArchetypeFamily
	case gc.TempMean < 3 && coldWeekend:
		return models.ArchetypeFamily
	default:
		return models.ArchetypeMixed
	}
}

// Generate produces a pre-game demand forecast from the game context and the
// historical profiles. Pure: no shared mutable state, total over any
// historically-seen game shape (missing archetype curves fall back to mixed,
// a missing reference attendance defaults the scale to 1.0).
func (g *Generator) Generate(gc models.GameContext, ps *profile.ProfileSet) *models.Forecast {
	archetype := DeriveArchetype(gc)

	scale := 1.0
	if ref := ps.RefAttendance(archetype); ref > 0 {
		scale = float64(gc.Attendance) / ref
	}

	beerFactor := g.beerFactor(gc.TempMean)
	hotDogPromo := gc.IsPromo && strings.Contains(strings.ToLower(gc.PromoType), "dog")

	f := &models.Forecast{
		Archetype:   archetype,
		Attendance:  gc.Attendance,
		ScaleFactor: round3(scale),
		BeerFactor:  round3(beerFactor),
	}

	for key, point := range ps.StandCurvesFor(archetype) {
		if !g.windowSupported(key.Window) {
			continue
		}
		f.StandForecast = append(f.StandForecast, models.StandForecastRow{
			Stand:       key.Entity,
			TimeWindow:  key.Window,
			ExpectedQty: toUnits(round1(point.AvgQty * scale)),
		})
	}

	for key, point := range ps.ItemCurvesFor(archetype) {
		if !g.windowSupported(key.Window) {
			continue
		}
		expected := g.adjustItem(key.Entity, round1(point.AvgQty*scale), beerFactor, hotDogPromo, gc.IsPlayoff)
		f.ItemForecast = append(f.ItemForecast, g.itemRow(key.Entity, key.Window, expected))
	}

	for key, point := range ps.StandItemCurvesFor(archetype) {
		if !g.windowSupported(key.Window) {
			continue
		}
		expected := g.adjustItem(key.Item, round1(point.AvgQty*scale), beerFactor, hotDogPromo, gc.IsPlayoff)
		row := g.itemRow(key.Item, key.Window, expected)
		f.StandItemForecast = append(f.StandItemForecast, models.StandItemForecastRow{
			Stand:         key.Stand,
			Item:          row.Item,
			TimeWindow:    key.Window,
			ExpectedQty:   row.ExpectedQty,
			PrepQty:       row.PrepQty,
			Perishability: row.Perishability,
		})
	}

	sortForecast(f)
	return f
}

// ForGame generates a forecast for a historical game using its known real
// attributes. Unknown dates surface as an explicit error.
func (g *Generator) ForGame(date string, ps *profile.ProfileSet) (*models.Forecast, error) {
	for _, gm := range ps.Games {
		if gm.Date == date {
			return g.Generate(gm.Context(), ps), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownGame, date)
}

// ApplyCorrection multiplies expected and prep quantities by a learned
// correction factor, re-rounding to integer units.
func ApplyCorrection(f *models.Forecast, factor float64) {
	for i := range f.StandForecast {
		f.StandForecast[i].ExpectedQty = toUnits(float64(f.StandForecast[i].ExpectedQty) * factor)
	}
	for i := range f.ItemForecast {
		f.ItemForecast[i].ExpectedQty = toUnits(float64(f.ItemForecast[i].ExpectedQty) * factor)
		f.ItemForecast[i].PrepQty = toUnits(float64(f.ItemForecast[i].PrepQty) * factor)
	}
	for i := range f.StandItemForecast {
		f.StandItemForecast[i].ExpectedQty = toUnits(float64(f.StandItemForecast[i].ExpectedQty) * factor)
		f.StandItemForecast[i].PrepQty = toUnits(float64(f.StandItemForecast[i].PrepQty) * factor)
	}
}

// beerFactor scales beer demand with temperature: +3%/°C above the 8°C
// reference, clamped. Hot drinks receive the reciprocal.
func (g *Generator) beerFactor(tempMean float64) float64 {
	f := 1.0 + (tempMean-g.cfg.Forecast.TempReferenceC)*g.cfg.Forecast.TempBeerPerDegC
	return math.Max(g.cfg.Forecast.BeerFactorMin, math.Min(g.cfg.Forecast.BeerFactorMax, f))
}

// adjustItem applies the multiplicative item adjustments in order:
// temperature, promo override, playoff boost. Intermediate results stay
// fractional; rounding happens once in itemRow.
func (g *Generator) adjustItem(item string, qty, beerFactor float64, hotDogPromo, isPlayoff bool) float64 {
	switch {
	case config.BeerItems[item]:
		qty *= beerFactor
	case config.HotDrinkItems[item]:
		qty *= 1.0 / beerFactor
	}
	if hotDogPromo && config.HotDogItems[item] {
		qty *= g.cfg.Forecast.PromoHotDogFactor
	}
	if isPlayoff {
		qty *= g.cfg.Forecast.PlayoffBoost
	}
	return qty
}

func (g *Generator) itemRow(item string, window int, expected float64) models.ItemForecastRow {
	tier := config.PerishabilityTier(item)
	expectedQty := toUnits(expected)
	return models.ItemForecastRow{
		Item:          item,
		TimeWindow:    window,
		ExpectedQty:   expectedQty,
		PrepQty:       toUnits(float64(expectedQty) * g.cfg.PrepTarget(tier)),
		Perishability: tier,
	}
}

func (g *Generator) windowSupported(window int) bool {
	return window >= g.cfg.Forecast.WindowMin && window <= g.cfg.Forecast.WindowMax
}

func sortForecast(f *models.Forecast) {
	sort.Slice(f.StandForecast, func(i, j int) bool {
		a, b := f.StandForecast[i], f.StandForecast[j]
		if a.Stand != b.Stand {
			return a.Stand < b.Stand
		}
		return a.TimeWindow < b.TimeWindow
	})
	sort.Slice(f.ItemForecast, func(i, j int) bool {
		a, b := f.ItemForecast[i], f.ItemForecast[j]
		if a.Item != b.Item {
			return a.Item < b.Item
		}
		return a.TimeWindow < b.TimeWindow
	})
	sort.Slice(f.StandItemForecast, func(i, j int) bool {
		a, b := f.StandItemForecast[i], f.StandItemForecast[j]
		if a.Stand != b.Stand {
			return a.Stand < b.Stand
		}
		if a.Item != b.Item {
			return a.Item < b.Item
		}
		return a.TimeWindow < b.TimeWindow
	})
}

func toUnits(x float64) int    { return int(math.Round(x)) }
func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
