package prepplan

import (
	"sort"
	"strings"
	"testing"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

func row(item string, window, prep int) models.ItemForecastRow {
	return models.ItemForecastRow{Item: item, TimeWindow: window, PrepQty: prep}
}

func forecast(rows ...models.ItemForecastRow) *models.Forecast {
	return &models.Forecast{ItemForecast: rows}
}

func actionsFor(actions []Action, item string) []Action {
	var out []Action
	for _, a := range actions {
		if a.Item == item {
			out = append(out, a)
		}
	}
	return out
}

func TestGenerateTierStrategies(t *testing.T) {
	tests := []struct {
		name string
		rows []models.ItemForecastRow
		want []Action
	}{
		{
			name: "shelf stable pre-stages full quantity before doors",
			rows: []models.ItemForecastRow{
				row("Candy", 0, 30),
				row("Candy", 20, 20),
			},
			want: []Action{
				{TimeWindow: -20, Stand: AllStands, Action: ActionPreStage, Item: "Candy", Quantity: 50, Tier: "shelf_stable"},
			},
		},
		{
			name: "medium hold batches pre-game and refreshes at intermissions",
			rows: []models.ItemForecastRow{
				row("Popcorn", -20, 10),
				row("Popcorn", 0, 20),
				row("Popcorn", 20, 15),
				row("Popcorn", 40, 5),
				row("Popcorn", 58, 8),
				row("Popcorn", 100, 2),
			},
			want: []Action{
				{TimeWindow: -10, Stand: AllStands, Action: ActionBatch, Item: "Popcorn", Quantity: 30, Tier: "medium_hold"},
				{TimeWindow: 20, Stand: AllStands, Action: ActionRefreshBatch, Item: "Popcorn", Quantity: 20, Tier: "medium_hold"},
				{TimeWindow: 58, Stand: AllStands, Action: ActionRefreshBatch, Item: "Popcorn", Quantity: 10, Tier: "medium_hold"},
			},
		},
		{
			name: "medium hold omits refreshes without demand",
			rows: []models.ItemForecastRow{
				row("Popcorn", -10, 12),
			},
			want: []Action{
				{TimeWindow: -10, Stand: AllStands, Action: ActionBatch, Item: "Popcorn", Quantity: 12, Tier: "medium_hold"},
			},
		},
		{
			name: "short life cooks per window and stops after demand collapses",
			rows: []models.ItemForecastRow{
				row("Fries", 0, 40),
				row("Fries", 20, 50),
				row("Fries", 70, 4),
			},
			want: []Action{
				{TimeWindow: 0, Stand: AllStands, Action: ActionContinuousCook, Item: "Fries", Quantity: 40, Tier: "short_life"},
				{TimeWindow: 20, Stand: AllStands, Action: ActionContinuousCook, Item: "Fries", Quantity: 50, Tier: "short_life"},
				{TimeWindow: 70, Stand: AllStands, Action: ActionContinuousCook, Item: "Fries", Quantity: 4, Tier: "short_life"},
				{TimeWindow: 70, Stand: AllStands, Action: ActionStopPrep, Item: "Fries", Quantity: 0, Tier: "short_life"},
			},
		},
		{
			name: "unknown item defaults to medium hold",
			rows: []models.ItemForecastRow{
				row("Mystery Special", 0, 6),
			},
			want: []Action{
				{TimeWindow: -10, Stand: AllStands, Action: ActionBatch, Item: "Mystery Special", Quantity: 6, Tier: "medium_hold"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(forecast(tt.rows...))
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d actions, got %d: %+v", len(tt.want), len(got), got)
			}
			for i, want := range tt.want {
				if got[i] != want {
					t.Errorf("Action %d: expected %+v, got %+v", i, want, got[i])
				}
			}
		})
	}
}

func TestGenerateStopPrepRequiresLateGame(t *testing.T) {
	// The collapse at minute 40 is mid-game; no stop signal should fire.
	actions := Generate(forecast(
		row("Fries", 0, 50),
		row("Fries", 40, 3),
	))
	for _, a := range actions {
		if a.Action == ActionStopPrep {
			t.Errorf("Unexpected stop signal mid-game: %+v", a)
		}
	}
}

func TestGenerateStopPrepFiresOnce(t *testing.T) {
	actions := Generate(forecast(
		row("Fries", 0, 50),
		row("Fries", 70, 2),
		row("Fries", 80, 1),
	))
	stops := 0
	for _, a := range actions {
		if a.Action == ActionStopPrep {
			stops++
			if a.TimeWindow != 70 {
				t.Errorf("Expected stop at the first collapsed window, got T%+d", a.TimeWindow)
			}
		}
	}
	if stops != 1 {
		t.Errorf("Expected exactly one stop signal, got %d", stops)
	}
}

func TestGenerateSkipsItemsWithoutPrep(t *testing.T) {
	actions := Generate(forecast(
		row("Candy", 0, 0),
		row("Popcorn", 0, 0),
	))
	if len(actions) != 0 {
		t.Errorf("Expected no actions for zero prep, got %+v", actions)
	}
}

func TestGenerateSortsByTime(t *testing.T) {
	actions := Generate(forecast(
		row("Fries", 40, 20),
		row("Candy", 0, 10),
		row("Popcorn", 30, 15),
		row("Fries", 0, 30),
	))
	if len(actions) == 0 {
		t.Fatal("Expected actions")
	}
	if !sort.SliceIsSorted(actions, func(i, j int) bool {
		return actions[i].TimeWindow < actions[j].TimeWindow
	}) {
		t.Errorf("Actions not time-ordered: %+v", actions)
	}
	if actions[0].Action != ActionPreStage {
		t.Errorf("Expected the pre-stage action first, got %+v", actions[0])
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	fc := forecast(
		row("Candy", 0, 10),
		row("Chips", 0, 10),
		row("Popcorn", 0, 10),
		row("Fries", 0, 10),
	)
	first := Generate(fc)
	second := Generate(fc)
	if len(first) != len(second) {
		t.Fatalf("Run lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Action %d differs across runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestFormatRendersTable(t *testing.T) {
	actions := []Action{
		{TimeWindow: -20, Stand: AllStands, Action: ActionPreStage, Item: "Candy", Quantity: 50, Tier: "shelf_stable"},
	}
	out := Format(actions)
	for _, want := range []string{"Time", "pre_stage", "Candy", "qty=50", "T  -20min"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in formatted plan:\n%s", want, out)
		}
	}
}
