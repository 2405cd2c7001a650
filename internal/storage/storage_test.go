package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data.json"))
}

func addGame(t *testing.T, r *Repository, game models.Game) {
	t.Helper()
	if err := r.AddGame(&game); err != nil {
		t.Fatalf("AddGame: %v", err)
	}
}

func txn(date, stand, item, category string, qty int) models.Transaction {
	return models.Transaction{
		Timestamp: time.Date(2025, 1, 10, 19, 30, 0, 0, time.UTC),
		GameDate:  date,
		Stand:     stand,
		Item:      item,
		Category:  category,
		Qty:       qty,
	}
}

func TestGameByDate(t *testing.T) {
	r := testRepo(t)
	addGame(t, r, models.Game{Date: "2025-01-10", Opponent: "Kamloops", Attendance: 4000})

	game, err := r.GameByDate("2025-01-10")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if game.Opponent != "Kamloops" {
		t.Errorf("Expected Kamloops, got %q", game.Opponent)
	}

	_, err = r.GameByDate("2025-12-25")
	if !errors.Is(err, ErrGameNotFound) {
		t.Errorf("Expected ErrGameNotFound, got %v", err)
	}
}

func TestAddGameValidates(t *testing.T) {
	r := testRepo(t)
	if err := r.AddGame(&models.Game{Date: "", Opponent: "Kamloops"}); err == nil {
		t.Error("Expected validation error for empty date")
	}
}

func TestExcludingViews(t *testing.T) {
	r := testRepo(t)
	addGame(t, r, models.Game{Date: "2025-01-10", Opponent: "Kamloops", Attendance: 4000})
	addGame(t, r, models.Game{Date: "2025-01-17", Opponent: "Seattle", Attendance: 3200})
	if err := r.AddTransactions([]models.Transaction{
		txn("2025-01-10", "SOFMC Island Canteen", "Popcorn", "Food", 3),
		txn("2025-01-17", "SOFMC Island Canteen", "Popcorn", "Food", 5),
	}); err != nil {
		t.Fatalf("AddTransactions: %v", err)
	}

	games := r.GamesExcluding("2025-01-10")
	if len(games) != 1 || games[0].Date != "2025-01-17" {
		t.Errorf("Unexpected held-out games: %+v", games)
	}
	txns := r.TransactionsExcluding("2025-01-10")
	if len(txns) != 1 || txns[0].GameDate != "2025-01-17" {
		t.Errorf("Unexpected held-out transactions: %+v", txns)
	}
	own := r.TransactionsForGame("2025-01-10")
	if len(own) != 1 || own[0].Qty != 3 {
		t.Errorf("Unexpected game transactions: %+v", own)
	}
}

func TestEnrichGames(t *testing.T) {
	r := testRepo(t)
	addGame(t, r, models.Game{
		Date: "2025-01-01", Opponent: "Seattle", DayOfWeek: "Sat",
		PuckDrop: "19:05", Attendance: 4000,
	})
	if err := r.AddTransactions([]models.Transaction{
		txn("2025-01-01", "SOFMC Island Canteen", "Draught Beer", "Beer", 30),
		txn("2025-01-01", "SOFMC Island Canteen", "Popcorn", "Food", 70),
	}); err != nil {
		t.Fatalf("AddTransactions: %v", err)
	}

	r.EnrichGames()

	game, err := r.GameByDate("2025-01-01")
	if err != nil {
		t.Fatalf("GameByDate: %v", err)
	}
	if game.PuckDropHour != 19 {
		t.Errorf("Expected puck drop hour 19, got %d", game.PuckDropHour)
	}
	if !game.IsWeekend {
		t.Error("Expected Saturday flagged as weekend")
	}
	if !game.IsHoliday {
		t.Error("Expected New Year's Day flagged as holiday")
	}
	if game.OpponentDivision != "US" || game.OpponentDistanceKm != 180 {
		t.Errorf("Unexpected opponent metadata: %q %v", game.OpponentDivision, game.OpponentDistanceKm)
	}
	// Beer is 30% of 100 units, over the beer_crowd threshold.
	if game.Archetype != models.ArchetypeBeerCrowd {
		t.Errorf("Expected beer_crowd, got %q", game.Archetype)
	}
	if game.TotalQty != 100 || game.TotalTxns != 2 {
		t.Errorf("Unexpected stats: qty %d txns %d", game.TotalQty, game.TotalTxns)
	}
	if game.QtyPerCap != 0.03 {
		t.Errorf("Expected qty per cap 0.03, got %v", game.QtyPerCap)
	}
}

func TestEnrichArchetypeThresholds(t *testing.T) {
	tests := []struct {
		name    string
		beerQty int
		foodQty int
		want    string
	}{
		{"beer crowd at 25 percent", 25, 75, models.ArchetypeBeerCrowd},
		{"family under 19 percent", 18, 82, models.ArchetypeFamily},
		{"mixed in between", 20, 80, models.ArchetypeMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRepo(t)
			addGame(t, r, models.Game{Date: "2025-01-10", Opponent: "Kamloops", DayOfWeek: "Wed", Attendance: 3000})
			if err := r.AddTransactions([]models.Transaction{
				txn("2025-01-10", "SOFMC Island Canteen", "Draught Beer", "Beer", tt.beerQty),
				txn("2025-01-10", "SOFMC Island Canteen", "Popcorn", "Food", tt.foodQty),
			}); err != nil {
				t.Fatalf("AddTransactions: %v", err)
			}
			r.EnrichGames()
			game, _ := r.GameByDate("2025-01-10")
			if game.Archetype != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, game.Archetype)
			}
		})
	}
}

func TestEnrichGameWithoutSalesStaysMixed(t *testing.T) {
	r := testRepo(t)
	addGame(t, r, models.Game{Date: "2025-01-10", Opponent: "Nanaimo", DayOfWeek: "Wed", PuckDrop: "bad"})
	r.EnrichGames()

	game, _ := r.GameByDate("2025-01-10")
	if game.Archetype != models.ArchetypeMixed {
		t.Errorf("Expected mixed without sales, got %q", game.Archetype)
	}
	if game.PuckDropHour != defaultPuckDropHour {
		t.Errorf("Expected default puck drop hour, got %d", game.PuckDropHour)
	}
	if game.OpponentDivision != "Unknown" {
		t.Errorf("Expected Unknown division, got %q", game.OpponentDivision)
	}
	if game.QtyPerCap != 0 {
		t.Errorf("Expected zero per-cap without attendance, got %v", game.QtyPerCap)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	r := New(path)
	addGame(t, r, models.Game{Date: "2025-01-10", Opponent: "Kamloops", Attendance: 4000})
	if err := r.AddTransactions([]models.Transaction{
		txn("2025-01-10", "SOFMC Island Canteen", "Popcorn", "Food", 7),
	}); err != nil {
		t.Fatalf("AddTransactions: %v", err)
	}
	if err := r.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := New(path)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	game, err := restored.GameByDate("2025-01-10")
	if err != nil {
		t.Fatalf("GameByDate after load: %v", err)
	}
	if game.Attendance != 4000 {
		t.Errorf("Expected attendance 4000, got %d", game.Attendance)
	}
	if got := restored.TransactionsForGame("2025-01-10"); len(got) != 1 || got[0].Qty != 7 {
		t.Errorf("Unexpected restored transactions: %+v", got)
	}
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing.json"))
	if err := r.Load(); err != nil {
		t.Fatalf("Load of missing file must not fail: %v", err)
	}
	if len(r.Games()) != 0 {
		t.Errorf("Expected empty repository, got %d games", len(r.Games()))
	}
}
