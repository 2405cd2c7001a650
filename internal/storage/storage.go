// Package storage provides thread-safe in-memory storage of the historical
// dataset (games and transactions) with file-based persistence and the
// enrichment pass that derives calendar flags, opponent metadata, crowd
// archetypes, and per-game aggregate stats.
//
// Storage is designed for reliability with atomic file writes and graceful
// handling of persistence failures. Data is persisted to JSON files and can
// be restored on application restart.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// ErrGameNotFound is returned when a date has no game in the repository.
var ErrGameNotFound = errors.New("game not found")

// defaultPuckDropHour covers games whose schedule row lacks a parseable time.
const defaultPuckDropHour = 19

// Repository provides thread-safe access to the historical dataset.
type Repository struct {
	mu           sync.RWMutex
	games        map[string]*models.Game
	transactions []models.Transaction
	txnsByDate   map[string][]models.Transaction

	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// PersistenceFile represents the file structure for JSON persistence
type PersistenceFile struct {
	Version      string                  `json:"version"`
	SavedAt      time.Time               `json:"saved_at"`
	Games        map[string]*models.Game `json:"games"`
	Transactions []models.Transaction    `json:"transactions"`
}

// New creates a repository persisting to filePath. An empty path falls back
// to an OS tmp location.
func New(filePath string) *Repository {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "pucksight", "data.json")
	}
	return &Repository{
		games:           make(map[string]*models.Game),
		txnsByDate:      make(map[string][]models.Transaction),
		filePath:        filePath,
		filePermissions: 0600,
		dirPermissions:  0700,
	}
}

// AddGame adds or replaces a game, keyed by date.
func (r *Repository) AddGame(game *models.Game) error {
	if err := game.Validate(); err != nil {
		return fmt.Errorf("invalid game: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.games[game.Date] = game
	return nil
}

// AddTransactions appends validated transactions to the dataset.
func (r *Repository) AddTransactions(txns []models.Transaction) error {
	for i := range txns {
		if err := txns[i].Validate(); err != nil {
			return fmt.Errorf("invalid transaction %d: %w", i, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, txn := range txns {
		r.transactions = append(r.transactions, txn)
		r.txnsByDate[txn.GameDate] = append(r.txnsByDate[txn.GameDate], txn)
	}
	return nil
}

// GameByDate returns the game for a date. An unknown date is a caller error,
// not a missing-data fallback.
func (r *Repository) GameByDate(date string) (models.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	game, exists := r.games[date]
	if !exists {
		return models.Game{}, fmt.Errorf("%w: %s", ErrGameNotFound, date)
	}
	return *game, nil
}

// Games returns all games sorted by date.
func (r *Repository) Games() []models.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gamesLocked()
}

func (r *Repository) gamesLocked() []models.Game {
	games := make([]models.Game, 0, len(r.games))
	for _, g := range r.games {
		games = append(games, *g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Date < games[j].Date })
	return games
}

// GamesExcluding returns all games except the given date, sorted by date.
// This is the held-out view the leave-one-out backtest trains on.
func (r *Repository) GamesExcluding(date string) []models.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]models.Game, 0, len(r.games))
	for _, g := range r.games {
		if g.Date != date {
			games = append(games, *g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Date < games[j].Date })
	return games
}

// Transactions returns the full transaction table.
func (r *Repository) Transactions() []models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Transaction, len(r.transactions))
	copy(out, r.transactions)
	return out
}

// TransactionsForGame returns one game's transactions.
func (r *Repository) TransactionsForGame(date string) []models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txns := r.txnsByDate[date]
	out := make([]models.Transaction, len(txns))
	copy(out, txns)
	return out
}

// TransactionsExcluding returns every transaction not belonging to a date.
func (r *Repository) TransactionsExcluding(date string) []models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Transaction, 0, len(r.transactions))
	for _, txn := range r.transactions {
		if txn.GameDate != date {
			out = append(out, txn)
		}
	}
	return out
}

// EnrichGames derives calendar flags, opponent metadata, crowd archetypes,
// and per-game aggregate stats for every stored game. Call it after loading
// the dataset and before building profiles; enrichment is idempotent.
func (r *Repository) EnrichGames() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, game := range r.games {
		game.PuckDropHour = puckDropHour(game.PuckDrop)
		game.IsWeekend = game.DayOfWeek == "Fri" || game.DayOfWeek == "Sat" || game.DayOfWeek == "Sun"
		game.IsHoliday = config.HolidayDates[game.Date]
		game.OpponentDistanceKm = config.OpponentDistance[game.Opponent]
		if div, ok := config.OpponentDivision[game.Opponent]; ok {
			game.OpponentDivision = div
		} else {
			game.OpponentDivision = "Unknown"
		}

		txns := r.txnsByDate[game.Date]
		game.Archetype = classifyArchetype(txns)
		game.TotalQty, game.TotalTxns = 0, len(txns)
		for _, txn := range txns {
			game.TotalQty += txn.Qty
		}
		if game.Attendance > 0 {
			game.QtyPerCap = math.Round(float64(game.TotalQty)/float64(game.Attendance)*100) / 100
		} else {
			game.QtyPerCap = 0
		}
	}
}

// classifyArchetype derives a game's crowd archetype from its beer share of
// total quantity. Games with no sales data stay mixed.
func classifyArchetype(txns []models.Transaction) string {
	totalQty, beerQty := 0, 0
	for _, txn := range txns {
		totalQty += txn.Qty
		if txn.Category == "Beer" {
			beerQty += txn.Qty
		}
	}
	if totalQty == 0 {
		return models.ArchetypeMixed
	}

	beerShare := float64(beerQty) / float64(totalQty)
	switch {
	case beerShare >= config.BeerCrowdShare:
		return models.ArchetypeBeerCrowd
	case beerShare < config.FamilyShare:
		return models.ArchetypeFamily
	default:
		return models.ArchetypeMixed
	}
}

// puckDropHour parses the hour out of a "HH:MM" schedule time.
func puckDropHour(puckDrop string) int {
	head, _, ok := strings.Cut(puckDrop, ":")
	if !ok {
		return defaultPuckDropHour
	}
	hour, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || hour < 0 || hour > 23 {
		return defaultPuckDropHour
	}
	return hour
}

// Save persists the dataset to disk atomically.
func (r *Repository) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, r.dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := PersistenceFile{
		Version:      "1.0",
		SavedAt:      time.Now(),
		Games:        r.games,
		Transactions: r.transactions,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := r.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, r.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, r.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Load restores the dataset from disk. A missing file means a fresh start.
func (r *Repository) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Clean up any stale temp files from previous crashes
	tempPath := r.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil
	}

	jsonData, err := os.ReadFile(r.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data PersistenceFile
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.games = data.Games
	if r.games == nil {
		r.games = make(map[string]*models.Game)
	}
	r.transactions = data.Transactions
	r.txnsByDate = make(map[string][]models.Transaction)
	for _, txn := range r.transactions {
		r.txnsByDate[txn.GameDate] = append(r.txnsByDate[txn.GameDate], txn)
	}
	return nil
}
