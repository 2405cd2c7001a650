package trafficlight

import (
	"strings"
	"testing"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/drift"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// session wires a detector and monitor around a multi-window stand forecast.
func session(t *testing.T, stands map[string]int, windows ...int) (*drift.Detector, *Monitor) {
	t.Helper()
	cfg := config.Default()
	f := &models.Forecast{}
	for stand, qty := range stands {
		for _, w := range windows {
			f.StandForecast = append(f.StandForecast, models.StandForecastRow{
				Stand: stand, TimeWindow: w, ExpectedQty: qty,
			})
		}
	}
	d := drift.NewDetector(cfg, f)
	return d, NewMonitor(cfg, d)
}

func pump(t *testing.T, d *drift.Detector, stand string, qty, window int) {
	t.Helper()
	for i := 0; i < 10; i++ {
		d.IngestEvent(models.SaleEvent{
			Stand: stand, Item: "Popcorn", Category: "Food",
			Qty: qty, TimeWindow: window,
		})
	}
	if _, err := d.CheckDrift(window); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestClassifyThresholds(t *testing.T) {
	_, m := session(t, map[string]int{"SOFMC Grill": 100}, 0)
	tests := []struct {
		drift float64
		want  models.Status
	}{
		{0.0, models.StatusGreen},
		{0.15, models.StatusGreen},
		{-0.15, models.StatusGreen},
		{0.16, models.StatusYellow},
		{-0.30, models.StatusYellow},
		{0.31, models.StatusRed},
		{-0.80, models.StatusRed},
	}
	for _, tt := range tests {
		if got := m.Classify(tt.drift); got != tt.want {
			t.Errorf("Classify(%v): expected %q, got %q", tt.drift, tt.want, got)
		}
	}
}

func TestUpdateWithoutReportIsGreen(t *testing.T) {
	_, m := session(t, map[string]int{"SOFMC Grill": 100}, 0)

	status := m.Update(0)
	if status.OverallStatus != models.StatusGreen {
		t.Errorf("Expected green with no report, got %q", status.OverallStatus)
	}
	if len(status.Stands) != 0 {
		t.Errorf("Expected no stand statuses, got %d", len(status.Stands))
	}
}

func TestUpdateSortsStandsWorstFirst(t *testing.T) {
	d, m := session(t, map[string]int{
		"SOFMC Grill":        100,
		"SOFMC Concession 2": 100,
		"SOFMC Popshop":      100,
	}, 0)
	// Grill +60% red, Concession 2 -20% yellow, Popshop +10% green.
	for i := 0; i < 10; i++ {
		d.IngestEvent(models.SaleEvent{Stand: "SOFMC Grill", Item: "Hot Dog", Category: "Food", Qty: 16, TimeWindow: 0})
		d.IngestEvent(models.SaleEvent{Stand: "SOFMC Concession 2", Item: "Popcorn", Category: "Food", Qty: 8, TimeWindow: 0})
		d.IngestEvent(models.SaleEvent{Stand: "SOFMC Popshop", Item: "Pop", Category: "Beverage", Qty: 11, TimeWindow: 0})
	}
	if _, err := d.CheckDrift(0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	status := m.Update(0)
	if len(status.Stands) != 3 {
		t.Fatalf("Expected 3 stand statuses, got %d", len(status.Stands))
	}
	wantOrder := []models.Status{models.StatusRed, models.StatusYellow, models.StatusGreen}
	for i, want := range wantOrder {
		if status.Stands[i].Status != want {
			t.Errorf("Position %d: expected %q, got %q (%+v)", i, want, status.Stands[i].Status, status.Stands[i])
		}
	}
	top := status.Stands[0]
	if top.ForecastQty != 100 || top.ActualQty != 160 {
		t.Errorf("Expected top row F:100 A:160, got F:%d A:%d", top.ForecastQty, top.ActualQty)
	}
	if m.CurrentStatus() != models.StatusRed {
		t.Errorf("Expected worst status red, got %q", m.CurrentStatus())
	}
}

func TestTrendDetection(t *testing.T) {
	d, m := session(t, map[string]int{"SOFMC Grill": 100}, 0, 10, 20)

	// Drift shrinks 50% -> 30% -> 10% across windows: improving.
	pump(t, d, "SOFMC Grill", 15, 0)
	m.Update(0)
	pump(t, d, "SOFMC Grill", 13, 10)
	m.Update(10)
	pump(t, d, "SOFMC Grill", 11, 20)
	status := m.Update(20)

	if len(status.Stands) != 1 {
		t.Fatalf("Expected 1 stand status, got %d", len(status.Stands))
	}
	if status.Stands[0].Trend != models.TrendImproving {
		t.Errorf("Expected improving trend, got %q", status.Stands[0].Trend)
	}
}

func TestTrendWorseningAndStable(t *testing.T) {
	d, m := session(t, map[string]int{"SOFMC Grill": 100}, 0, 10, 20)

	pump(t, d, "SOFMC Grill", 10, 0) // 0%
	first := m.Update(0)
	if first.Stands[0].Trend != models.TrendStable {
		t.Errorf("Expected stable trend on first sample, got %q", first.Stands[0].Trend)
	}

	pump(t, d, "SOFMC Grill", 11, 10) // +10%: grew by 10pp
	second := m.Update(10)
	if second.Stands[0].Trend != models.TrendWorsening {
		t.Errorf("Expected worsening trend, got %q", second.Stands[0].Trend)
	}

	pump(t, d, "SOFMC Grill", 12, 20) // oldest of last 3 is 0%, newest 20%
	third := m.Update(20)
	if third.Stands[0].Trend != models.TrendWorsening {
		t.Errorf("Expected worsening trend, got %q", third.Stands[0].Trend)
	}
}

func TestSummaryLineHidesEarlyCumulative(t *testing.T) {
	d, m := session(t, map[string]int{"SOFMC Grill": 100}, 0)
	if m.SummaryLine() != "No data yet" {
		t.Errorf("Expected placeholder before any update, got %q", m.SummaryLine())
	}

	pump(t, d, "SOFMC Grill", 10, 0)
	m.Update(0)
	line := m.SummaryLine()
	if line == "" || line == "No data yet" {
		t.Errorf("Expected a summary line, got %q", line)
	}
	// Only 100 units of forecast have accrued, under the cumulative floor.
	if strings.Contains(line, "cum:") {
		t.Errorf("Expected cumulative hidden under floor, got %q", line)
	}
}

func TestSummaryLineFloorIsConfigurable(t *testing.T) {
	cfg := config.Default()
	cfg.TrafficLight.CumulativeFloor = 50
	f := &models.Forecast{StandForecast: []models.StandForecastRow{
		{Stand: "SOFMC Grill", TimeWindow: 0, ExpectedQty: 100},
	}}
	d := drift.NewDetector(cfg, f)
	m := NewMonitor(cfg, d)

	pump(t, d, "SOFMC Grill", 10, 0)
	m.Update(0)
	// 100 accrued units clear the lowered floor.
	if line := m.SummaryLine(); !strings.Contains(line, "cum:") {
		t.Errorf("Expected cumulative shown above lowered floor, got %q", line)
	}
}

func TestStandHistoryStaysBounded(t *testing.T) {
	d, m := session(t, map[string]int{"SOFMC Grill": 100}, 0, 10, 20, 30, 40)

	// Five windows of shrinking drift: 50% 40% 30% 20% 10%.
	for i, qty := range []int{15, 14, 13, 12, 11} {
		pump(t, d, "SOFMC Grill", qty, i*10)
		m.Update(i * 10)
	}

	if got := len(m.standHistory["SOFMC Grill"]); got != trendSamples {
		t.Errorf("Expected history trimmed to %d samples, got %d", trendSamples, got)
	}
	latest := m.History()[len(m.History())-1]
	if latest.Stands[0].Trend != models.TrendImproving {
		t.Errorf("Expected improving trend from the retained samples, got %q", latest.Stands[0].Trend)
	}
}
