// Package trafficlight derives a glanceable green/yellow/red operational view
// per stand and overall from the drift detector's reports, with short-horizon
// trend detection. It is a pure derived layer: it never mutates detector
// state, only its own rolling trend history.
package trafficlight

import (
	"fmt"
	"math"
	"sort"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/drift"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// trendSamples is how many recent drift values feed the trend comparison.
const trendSamples = 3

// Monitor tracks per-stand and overall traffic light status across a live
// game. Not safe for concurrent use; drive it from the same loop that calls
// the detector's CheckDrift.
type Monitor struct {
	cfg      *config.Config
	detector *drift.Detector

	history      []models.OverallStatus
	standHistory map[string][]float64
}

// NewMonitor creates a monitor layered on a detector.
func NewMonitor(cfg *config.Config, detector *drift.Detector) *Monitor {
	return &Monitor{
		cfg:          cfg,
		detector:     detector,
		standHistory: make(map[string][]float64),
	}
}

// Classify maps a drift value to a traffic light status.
func (m *Monitor) Classify(driftValue float64) models.Status {
	abs := math.Abs(driftValue)
	switch {
	case abs <= m.cfg.TrafficLight.GreenThreshold:
		return models.StatusGreen
	case abs <= m.cfg.TrafficLight.YellowThreshold:
		return models.StatusYellow
	default:
		return models.StatusRed
	}
}

// Update computes the venue status for a window whose drift report already
// exists. A window with no report yields an all-green empty status.
func (m *Monitor) Update(timeWindow int) models.OverallStatus {
	report, ok := m.detector.ReportFor(timeWindow)
	if !ok {
		status := models.OverallStatus{
			TimeWindow:      timeWindow,
			OverallStatus:   models.StatusGreen,
			CumulativeDrift: m.detector.CumulativeDrift(),
		}
		m.history = append(m.history, status)
		return status
	}

	status := models.OverallStatus{
		TimeWindow:      timeWindow,
		OverallStatus:   m.Classify(report.OverallVolumeDrift),
		OverallDrift:    report.OverallVolumeDrift,
		CumulativeDrift: m.detector.CumulativeDrift(),
	}

	for stand, driftValue := range report.StandDrifts {
		samples := append(m.standHistory[stand], driftValue)
		if len(samples) > trendSamples {
			samples = samples[len(samples)-trendSamples:]
		}
		m.standHistory[stand] = samples
		fc, actual := m.detector.StandWindowQty(stand, timeWindow)
		status.Stands = append(status.Stands, models.StandStatus{
			Stand:       config.ShortStand(stand),
			Status:      m.Classify(driftValue),
			DriftPct:    driftValue,
			ForecastQty: fc,
			ActualQty:   actual,
			Trend:       m.trend(m.standHistory[stand]),
		})
	}

	sort.SliceStable(status.Stands, func(i, j int) bool {
		a, b := status.Stands[i], status.Stands[j]
		if a.Status.Priority() != b.Status.Priority() {
			return a.Status.Priority() < b.Status.Priority()
		}
		return math.Abs(a.DriftPct) > math.Abs(b.DriftPct)
	})

	m.history = append(m.history, status)
	return status
}

// trend compares the newest absolute drift to the oldest of the last few
// samples: shrinking past the delta is improving, growing is worsening.
func (m *Monitor) trend(history []float64) string {
	if len(history) < 2 {
		return models.TrendStable
	}
	recent := history
	if len(recent) > trendSamples {
		recent = recent[len(recent)-trendSamples:]
	}
	oldest := math.Abs(recent[0])
	newest := math.Abs(recent[len(recent)-1])
	switch {
	case newest < oldest-m.cfg.TrafficLight.TrendDelta:
		return models.TrendImproving
	case newest > oldest+m.cfg.TrafficLight.TrendDelta:
		return models.TrendWorsening
	default:
		return models.TrendStable
	}
}

// CurrentStatus is the worst stand status from the latest update, green when
// nothing has been observed yet.
func (m *Monitor) CurrentStatus() models.Status {
	if len(m.history) == 0 {
		return models.StatusGreen
	}
	latest := m.history[len(m.history)-1]
	worst := models.StatusGreen
	for _, s := range latest.Stands {
		if s.Status.Priority() < worst.Priority() {
			worst = s.Status
		}
	}
	return worst
}

// History returns all statuses computed so far.
func (m *Monitor) History() []models.OverallStatus {
	out := make([]models.OverallStatus, len(m.history))
	copy(out, m.history)
	return out
}

// SummaryLine renders a compact one-line state for logs and alerts.
func (m *Monitor) SummaryLine() string {
	if len(m.history) == 0 {
		return "No data yet"
	}
	latest := m.history[len(m.history)-1]
	var red, yellow, green int
	for _, s := range latest.Stands {
		switch s.Status {
		case models.StatusRed:
			red++
		case models.StatusYellow:
			yellow++
		default:
			green++
		}
	}
	// Below the floor the cumulative ratio is early-game noise.
	cum := ""
	if m.detector.Summary().TotalForecast > m.cfg.TrafficLight.CumulativeFloor {
		cum = fmt.Sprintf(" (cum: %+.0f%%)", latest.CumulativeDrift*100)
	}
	return fmt.Sprintf("T%+dmin | R%d Y%d G%d | Drift: %+.0f%%%s",
		latest.TimeWindow, red, yellow, green, latest.OverallDrift*100, cum)
}
