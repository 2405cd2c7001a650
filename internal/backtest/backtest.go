// Package backtest certifies forecast accuracy by leave-one-out cross
// validation: every historical game is held out exactly once, profiles are
// rebuilt from the remaining games, and the held-out game is forecast with
// its known real attributes and scored against its actual sales.
package backtest

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/forecast"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/logger"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/profile"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/storage"
)

// Corrector supplies a post-hoc multiplicative correction factor per game.
type Corrector interface {
	Factor(game models.Game) float64
}

// Validator runs leave-one-out validation over the repository's games.
type Validator struct {
	cfg *config.Config
	gen *forecast.Generator
}

// New creates a validator.
func New(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg, gen: forecast.NewGenerator(cfg)}
}

// Run validates every game once. The per-game rebuilds are independent, so
// they fan out across a worker pool; results come back sorted by date so two
// runs over the same dataset are identical. A nil corrector skips correction.
func (v *Validator) Run(repo *storage.Repository, corrector Corrector) []models.GameResult {
	games := repo.Games()

	workers := v.cfg.Backtest.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan models.Game)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []models.GameResult
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for game := range jobs {
				result, ok := v.validateGame(repo, game, corrector)
				if !ok {
					continue
				}
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

	for _, game := range games {
		jobs <- game
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].GameDate < results[j].GameDate })
	logger.Info("Backtest complete: %d of %d games validated", len(results), len(games))
	return results
}

// validateGame rebuilds profiles without one game, forecasts it, and scores
// forecast vs actual. Games with no training data are skipped.
func (v *Validator) validateGame(repo *storage.Repository, game models.Game, corrector Corrector) (models.GameResult, bool) {
	trainTxns := repo.TransactionsExcluding(game.Date)
	if len(trainTxns) == 0 {
		return models.GameResult{}, false
	}
	trainGames := repo.GamesExcluding(game.Date)

	ps := profile.Build(trainTxns, trainGames)
	fc := v.gen.Generate(game.Context(), ps)
	if corrector != nil {
		forecast.ApplyCorrection(fc, corrector.Factor(game))
	}

	return v.score(game, fc, repo.TransactionsForGame(game.Date)), true
}

func (v *Validator) score(game models.Game, fc *models.Forecast, actualTxns []models.Transaction) models.GameResult {
	actualByStand := make(map[string]int)
	actualByItem := make(map[string]int)
	actualTotal := 0
	for _, txn := range actualTxns {
		actualByStand[txn.Stand] += txn.Qty
		actualByItem[txn.Item] += txn.Qty
		actualTotal += txn.Qty
	}

	fcByStand := make(map[string]int)
	for _, row := range fc.StandForecast {
		fcByStand[row.Stand] += row.ExpectedQty
	}
	fcByItem := make(map[string]int)
	prepByItem := make(map[string]int)
	forecastTotal := 0
	for _, row := range fc.ItemForecast {
		fcByItem[row.Item] += row.ExpectedQty
		prepByItem[row.Item] += row.PrepQty
		forecastTotal += row.ExpectedQty
	}

	volumeError := 0.0
	if actualTotal > 0 {
		volumeError = float64(forecastTotal-actualTotal) / float64(actualTotal)
	}

	// Prep scoring runs over the union of forecast and actual items; coverage
	// only counts items that actually sold.
	covered, demanded := 0, 0
	waste, stockout := 0, 0
	for item := range unionKeys(prepByItem, actualByItem) {
		prep, actual := prepByItem[item], actualByItem[item]
		if actual > 0 {
			demanded++
			if prep >= actual {
				covered++
			}
		}
		if prep > actual {
			waste += prep - actual
		} else {
			stockout += actual - prep
		}
	}
	prepCoverage := 1.0
	if demanded > 0 {
		prepCoverage = float64(covered) / float64(demanded)
	}

	return models.GameResult{
		GameDate:      game.Date,
		Opponent:      game.Opponent,
		Attendance:    game.Attendance,
		Archetype:     fc.Archetype,
		ActualTotal:   actualTotal,
		ForecastTotal: forecastTotal,
		VolumeError:   volumeError,
		StandMAPE:     mape(fcByStand, actualByStand, 0),
		ItemMAPE:      mape(fcByItem, actualByItem, v.cfg.Backtest.TopItems),
		PrepCoverage:  prepCoverage,
		WasteUnits:    waste,
		StockoutUnits: stockout,
	}
}

// mape computes mean absolute percentage error over entities present in both
// maps with nonzero actual. topN > 0 restricts the comparison to the largest
// actual sellers, which keeps long-tail noise out of the item metric.
func mape(fc, actual map[string]int, topN int) float64 {
	entities := make([]string, 0, len(actual))
	for entity, qty := range actual {
		if qty > 0 {
			entities = append(entities, entity)
		}
	}
	if topN > 0 && len(entities) > topN {
		sort.Slice(entities, func(i, j int) bool {
			if actual[entities[i]] != actual[entities[j]] {
				return actual[entities[i]] > actual[entities[j]]
			}
			return entities[i] < entities[j]
		})
		entities = entities[:topN]
	}

	sum, n := 0.0, 0
	for _, entity := range entities {
		fcQty, ok := fc[entity]
		if !ok {
			continue
		}
		sum += math.Abs(float64(fcQty-actual[entity])) / float64(actual[entity])
		n++
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}

func unionKeys(a, b map[string]int) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

// Summary aggregates a backtest run for reporting.
type Summary struct {
	GamesValidated     int     `json:"games_validated"`
	MedianVolumeError  float64 `json:"median_volume_error"`
	MeanAbsVolumeError float64 `json:"mean_abs_volume_error"`
	MeanStandMAPE      float64 `json:"mean_stand_mape"`
	MeanItemMAPE       float64 `json:"mean_item_mape"`
	MeanPrepCoverage   float64 `json:"mean_prep_coverage"`
	Within15Pct        int     `json:"within_15_pct"`
	Within25Pct        int     `json:"within_25_pct"`
	TotalWasteUnits    int     `json:"total_waste_units"`
	TotalStockoutUnits int     `json:"total_stockout_units"`

	// Median signed volume error per crowd archetype, the per-segment bias
	// view the correction model trains against.
	MedianByArchetype map[string]float64 `json:"median_by_archetype"`
}

// Summarize reduces per-game results to aggregate accuracy metrics.
func Summarize(results []models.GameResult) Summary {
	s := Summary{GamesValidated: len(results)}
	if len(results) == 0 {
		return s
	}

	errors := make([]float64, 0, len(results))
	byArch := make(map[string][]float64)
	for _, r := range results {
		errors = append(errors, r.VolumeError)
		byArch[r.Archetype] = append(byArch[r.Archetype], r.VolumeError)
		s.MeanAbsVolumeError += math.Abs(r.VolumeError)
		s.MeanStandMAPE += r.StandMAPE
		s.MeanItemMAPE += r.ItemMAPE
		s.MeanPrepCoverage += r.PrepCoverage
		s.TotalWasteUnits += r.WasteUnits
		s.TotalStockoutUnits += r.StockoutUnits
		if math.Abs(r.VolumeError) <= 0.15 {
			s.Within15Pct++
		}
		if math.Abs(r.VolumeError) <= 0.25 {
			s.Within25Pct++
		}
	}

	n := float64(len(results))
	s.MedianVolumeError = median(errors)
	s.MeanAbsVolumeError /= n
	s.MeanStandMAPE /= n
	s.MeanItemMAPE /= n
	s.MeanPrepCoverage /= n

	s.MedianByArchetype = make(map[string]float64, len(byArch))
	for arch, errs := range byArch {
		s.MedianByArchetype[arch] = median(errs)
	}
	return s
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
