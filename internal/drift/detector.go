// Package drift compares streamed point-of-sale events against a precomputed
// forecast and emits typed drift signals per completed time window. One
// Detector is owned by one live-game session and discarded at game end.
package drift

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/logger"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// ErrWindowReported is returned when CheckDrift is called a second time for a
// window that already has a report. The stored report is returned alongside
// it so the caller can still render the window.
var ErrWindowReported = errors.New("drift already reported for window")

type standWindow struct {
	Stand  string
	Window int
}

type itemWindow struct {
	Item   string
	Window int
}

type standItemWindow struct {
	Stand  string
	Item   string
	Window int
}

// Detector accumulates live actuals and checks them against forecast per
// time window. All mutation happens under the mutex so event ingestion may
// interleave with read-only queries from a reporting goroutine.
type Detector struct {
	cfg *config.Config

	mu sync.Mutex

	fcStand     map[standWindow]int
	fcItem      map[itemWindow]int
	fcStandItem map[standItemWindow]int

	actualByStand     map[standWindow]int
	actualByItem      map[itemWindow]int
	actualByCategory  map[itemWindow]int
	actualByStandItem map[standItemWindow]int
	actualByWindow    map[int]int
	eventsByWindow    map[int]int

	cumulativeActual   int
	cumulativeForecast int

	history  []*models.DriftReport
	reported map[int]*models.DriftReport
}

// NewDetector creates a detector bound to one game's forecast.
func NewDetector(cfg *config.Config, forecast *models.Forecast) *Detector {
	d := &Detector{
		cfg:               cfg,
		fcStand:           make(map[standWindow]int),
		fcItem:            make(map[itemWindow]int),
		fcStandItem:       make(map[standItemWindow]int),
		actualByStand:     make(map[standWindow]int),
		actualByItem:      make(map[itemWindow]int),
		actualByCategory:  make(map[itemWindow]int),
		actualByStandItem: make(map[standItemWindow]int),
		actualByWindow:    make(map[int]int),
		eventsByWindow:    make(map[int]int),
		reported:          make(map[int]*models.DriftReport),
	}
	for _, row := range forecast.StandForecast {
		d.fcStand[standWindow{row.Stand, row.TimeWindow}] = row.ExpectedQty
	}
	for _, row := range forecast.ItemForecast {
		d.fcItem[itemWindow{row.Item, row.TimeWindow}] = row.ExpectedQty
	}
	for _, row := range forecast.StandItemForecast {
		d.fcStandItem[standItemWindow{row.Stand, row.Item, row.TimeWindow}] = row.ExpectedQty
	}
	return d
}

// IngestEvent records one streamed sale. O(1); never re-reads or resets
// prior accumulation.
func (d *Detector) IngestEvent(event models.SaleEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tw := event.TimeWindow
	d.actualByStand[standWindow{event.Stand, tw}] += event.Qty
	d.actualByItem[itemWindow{event.Item, tw}] += event.Qty
	d.actualByCategory[itemWindow{event.Category, tw}] += event.Qty
	d.actualByStandItem[standItemWindow{event.Stand, event.Item, tw}] += event.Qty
	d.actualByWindow[tw] += event.Qty
	d.eventsByWindow[tw]++
	d.cumulativeActual += event.Qty
}

// CheckDrift analyzes one completed time window. The caller decides when a
// window is closed; the detector only guards against double reporting, in
// which case the stored report comes back with ErrWindowReported and history
// is left untouched.
func (d *Detector) CheckDrift(timeWindow int) (*models.DriftReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.reported[timeWindow]; ok {
		return prev, fmt.Errorf("%w: %d", ErrWindowReported, timeWindow)
	}

	report := &models.DriftReport{
		TimeWindow:  timeWindow,
		StandDrifts: make(map[string]float64),
		ItemDrifts:  make(map[string]float64),
	}
	var signals []models.DriftSignal

	actualTotal := d.actualByWindow[timeWindow]
	fcTotal := 0
	for key, qty := range d.fcStand {
		if key.Window == timeWindow {
			fcTotal += qty
		}
	}

	// A zero forecast total is skipped outright; a sparse window records the
	// drift but withholds the overall signal.
	if fcTotal > 0 && d.eventsByWindow[timeWindow] >= d.cfg.Drift.MinSamples {
		volDrift := float64(actualTotal-fcTotal) / float64(fcTotal)
		report.OverallVolumeDrift = volDrift
		if math.Abs(volDrift) >= d.cfg.Drift.VolumeThreshold {
			signals = append(signals, d.signal(models.DriftTypeVolume, "overall", volDrift, timeWindow,
				fmt.Sprintf("Total demand %+.0f%% vs forecast (%d vs %d expected)", volDrift*100, actualTotal, fcTotal)))
		}
	}

	for key, actual := range d.actualByStand {
		if key.Window != timeWindow {
			continue
		}
		fc := d.fcStand[standWindow{key.Stand, timeWindow}]
		short := config.ShortStand(key.Stand)
		switch {
		case fc > 0:
			drift := float64(actual-fc) / float64(fc)
			report.StandDrifts[key.Stand] = drift
			if math.Abs(drift) >= d.cfg.Drift.VolumeThreshold {
				signals = append(signals, d.signal(models.DriftTypeVolume, short, drift, timeWindow,
					fmt.Sprintf("%s: %d actual vs %d forecast (%+.0f%%)", short, actual, fc, drift*100)))
			}
		case actual > d.cfg.Drift.MinSamples:
			// Activity at a stand with no forecast at all.
			report.StandDrifts[key.Stand] = 1.0
			signals = append(signals, d.signal(models.DriftTypeVolume, short, 1.0, timeWindow,
				fmt.Sprintf("%s: %d actual with no forecast (untracked stand?)", short, actual)))
		}
	}

	for key, actual := range d.actualByItem {
		if key.Window != timeWindow {
			continue
		}
		fc := d.fcItem[itemWindow{key.Item, timeWindow}]
		if fc <= 0 {
			continue
		}
		drift := float64(actual-fc) / float64(fc)
		report.ItemDrifts[key.Item] = drift
		// Items are noisier than stands, so the bar for a signal is higher.
		if math.Abs(drift) >= d.cfg.Drift.MixThreshold {
			signals = append(signals, d.signal(models.DriftTypeMix, key.Item, drift, timeWindow,
				fmt.Sprintf("%s: %d actual vs %d forecast (%+.0f%%)", key.Item, actual, fc, drift*100)))
		}
	}

	totalCat := 0
	for key, actual := range d.actualByCategory {
		if key.Window == timeWindow {
			totalCat += actual
		}
	}
	if totalCat > d.cfg.Drift.MinSamples {
		report.CategoryMixShare = make(map[string]float64)
		for key, actual := range d.actualByCategory {
			if key.Window == timeWindow {
				report.CategoryMixShare[key.Item] = float64(actual) / float64(totalCat)
			}
		}
	}

	// Cumulative forecast accrues per checked window even when the overall
	// signal was gated.
	d.cumulativeForecast += fcTotal

	sort.SliceStable(signals, func(i, j int) bool {
		return math.Abs(signals[i].Magnitude) > math.Abs(signals[j].Magnitude)
	})
	report.Signals = signals

	d.history = append(d.history, report)
	d.reported[timeWindow] = report

	if report.HasSignificantDrift() {
		logger.Info("Drift window %+d: %d signals, overall %+.1f%%",
			timeWindow, len(report.Signals), report.OverallVolumeDrift*100)
	}
	return report, nil
}

func (d *Detector) signal(driftType, scope string, magnitude float64, window int, detail string) models.DriftSignal {
	direction := models.DirectionAbove
	if magnitude < 0 {
		direction = models.DirectionBelow
	}
	return models.DriftSignal{
		ID:         uuid.NewString(),
		DriftType:  driftType,
		Scope:      scope,
		Magnitude:  magnitude,
		Direction:  direction,
		TimeWindow: window,
		Detail:     detail,
	}
}

// CumulativeDrift is the running (actual − forecast) / forecast across all
// checked windows, 0 before any forecast has accrued.
func (d *Detector) CumulativeDrift() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cumulativeForecast == 0 {
		return 0.0
	}
	return float64(d.cumulativeActual-d.cumulativeForecast) / float64(d.cumulativeForecast)
}

// History returns the ordered reports emitted so far.
func (d *Detector) History() []*models.DriftReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.DriftReport, len(d.history))
	copy(out, d.history)
	return out
}

// ReportFor returns the stored report for a window, if one was emitted.
func (d *Detector) ReportFor(timeWindow int) (*models.DriftReport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	report, ok := d.reported[timeWindow]
	return report, ok
}

// StandWindowQty returns the forecast and accumulated actual quantity for
// one stand in one window.
func (d *Detector) StandWindowQty(stand string, timeWindow int) (forecast, actual int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := standWindow{stand, timeWindow}
	return d.fcStand[key], d.actualByStand[key]
}

// StandLoadAnalysis inspects per-stand, per-item load for a window and
// suggests redirecting overloaded items toward stands with spare forecast
// capacity. Rows come back overloaded-first, then by drift magnitude.
func (d *Detector) StandLoadAnalysis(timeWindow int) []models.StandLoad {
	d.mu.Lock()
	defer d.mu.Unlock()

	var results []models.StandLoad
	for key, actual := range d.actualByStandItem {
		if key.Window != timeWindow {
			continue
		}
		fc := d.fcStandItem[standItemWindow{key.Stand, key.Item, timeWindow}]
		itemDrift := 0.0
		if fc > 0 {
			itemDrift = float64(actual-fc) / float64(fc)
		}
		overloaded := itemDrift > d.cfg.Drift.MixThreshold && actual >= d.cfg.Drift.MinSamples

		suggestion := ""
		if overloaded {
			if alt, capacity := d.bestAlternative(key.Stand, key.Item, timeWindow); alt != "" {
				suggestion = fmt.Sprintf("Redirect %s demand from %s to %s (has %d units capacity)",
					key.Item, config.ShortStand(key.Stand), config.ShortStand(alt), capacity)
			}
		}

		results = append(results, models.StandLoad{
			Stand:      key.Stand,
			Item:       key.Item,
			Actual:     actual,
			Forecast:   fc,
			Drift:      itemDrift,
			Overloaded: overloaded,
			Suggestion: suggestion,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Overloaded != results[j].Overloaded {
			return results[i].Overloaded
		}
		return math.Abs(results[i].Drift) > math.Abs(results[j].Drift)
	})
	return results
}

// bestAlternative finds the underloaded stand with the most spare forecast
// capacity for an item. Caller holds the mutex.
func (d *Detector) bestAlternative(stand, item string, timeWindow int) (string, int) {
	best, bestCap := "", 0
	for key, fc := range d.fcStandItem {
		if key.Item != item || key.Window != timeWindow || key.Stand == stand || fc <= 0 {
			continue
		}
		actual := d.actualByStandItem[key]
		drift := float64(actual-fc) / float64(fc)
		if drift >= d.cfg.Drift.VolumeThreshold {
			continue
		}
		if capacity := fc - actual; capacity > bestCap {
			best, bestCap = key.Stand, capacity
		}
	}
	return best, bestCap
}

// Summary aggregates all emitted reports for end-of-game reporting.
func (d *Detector) Summary() models.DriftSummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := models.DriftSummary{
		TotalWindows:  len(d.history),
		TotalActual:   d.cumulativeActual,
		TotalForecast: d.cumulativeForecast,
	}
	for _, r := range d.history {
		if r.HasSignificantDrift() {
			s.WindowsWithDrift++
		}
		s.TotalSignals += len(r.Signals)
		for _, sig := range r.Signals {
			switch sig.Severity() {
			case models.SeverityCritical:
				s.CriticalSignals++
			case models.SeverityWarning:
				s.WarningSignals++
			}
		}
	}
	if d.cumulativeForecast > 0 {
		s.CumulativeDrift = float64(d.cumulativeActual-d.cumulativeForecast) / float64(d.cumulativeForecast)
	}
	return s
}
