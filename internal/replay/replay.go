// Package replay streams a historical game's transactions back as live sale
// events at a configurable speed, optionally perturbed by injected noise.
// It exists to exercise the drift detector and traffic light against known
// ground truth: replay a game the forecast was trained without, distort
// demand, and watch the monitoring stack react.
package replay

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/logger"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/storage"
)

// NoiseConfig distorts replayed demand. The zero value replays the game
// faithfully.
type NoiseConfig struct {
	GlobalVolumeFactor  float64 // scale all quantities, 0 or 1 = unchanged
	StandOutage         string  // stand whose events are dropped during the outage
	StandOutageStartMin float64
	StandOutageEndMin   float64
	DemandSpikeStand    string // stand whose demand is multiplied after the spike minute
	DemandSpikeFactor   float64
	DemandSpikeAfterMin float64
}

// Observer receives every emitted event.
type Observer func(models.SaleEvent)

// WindowObserver is called once per completed time window with the events
// that fell in it.
type WindowObserver func(timeWindow int, events []models.SaleEvent)

// Simulator replays one game's transactions in timestamp order.
type Simulator struct {
	game            models.Game
	txns            []models.Transaction
	speed           float64
	noise           NoiseConfig
	observers       []Observer
	windowObservers []WindowObserver
}

// New builds a simulator for a stored game. Speed is the wall-clock
// compression factor: 60 plays an hour of game time per minute, 0 disables
// pacing entirely.
func New(repo *storage.Repository, gameDate string, speed float64, noise NoiseConfig) (*Simulator, error) {
	game, err := repo.GameByDate(gameDate)
	if err != nil {
		return nil, err
	}
	txns := repo.TransactionsForGame(gameDate)
	if len(txns) == 0 {
		return nil, errors.New("no transactions recorded for " + gameDate)
	}

	sorted := append([]models.Transaction(nil), txns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	return &Simulator{
		game:  game,
		txns:  sorted,
		speed: speed,
		noise: noise,
	}, nil
}

// OnEvent registers a per-event callback.
func (s *Simulator) OnEvent(obs Observer) {
	s.observers = append(s.observers, obs)
}

// OnWindowClose registers a per-completed-window callback.
func (s *Simulator) OnWindowClose(obs WindowObserver) {
	s.windowObservers = append(s.windowObservers, obs)
}

// Game returns the replayed game's metadata.
func (s *Simulator) Game() models.Game {
	return s.game
}

// TotalTransactions reports the size of the replay source.
func (s *Simulator) TotalTransactions() int {
	return len(s.txns)
}

// Run replays the game until completion or context cancellation. On
// cancellation the current window's close callback still fires, so downstream
// consumers see a consistent final window, and ctx.Err() is returned along
// with the events emitted so far.
func (s *Simulator) Run(ctx context.Context) ([]models.SaleEvent, error) {
	logger.Info("Replaying %s vs %s (%d transactions, speed %.0fx)",
		s.game.Date, s.game.Opponent, len(s.txns), s.speed)

	var (
		emitted       []models.SaleEvent
		windowEvents  = make(map[int][]models.SaleEvent)
		currentWindow = -1
		haveWindow    bool
		prevTime      time.Time
	)

	closeWindow := func() {
		if !haveWindow {
			return
		}
		for _, obs := range s.windowObservers {
			obs(currentWindow, windowEvents[currentWindow])
		}
	}

	for _, txn := range s.txns {
		event, ok := s.applyNoise(txn)
		if !ok {
			continue
		}

		if err := s.pace(ctx, prevTime, event.Timestamp); err != nil {
			closeWindow()
			return emitted, err
		}
		prevTime = event.Timestamp

		if haveWindow && event.TimeWindow != currentWindow {
			closeWindow()
		}
		currentWindow = event.TimeWindow
		haveWindow = true

		for _, obs := range s.observers {
			obs(event)
		}
		emitted = append(emitted, event)
		windowEvents[event.TimeWindow] = append(windowEvents[event.TimeWindow], event)
	}

	closeWindow()
	return emitted, nil
}

// pace sleeps the scaled gap between consecutive events, abandoning the wait
// if the context is cancelled.
func (s *Simulator) pace(ctx context.Context, prev, next time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.speed <= 0 || prev.IsZero() {
		return nil
	}
	delta := next.Sub(prev)
	if delta <= 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(float64(delta) / s.speed))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// applyNoise converts one transaction into a sale event under the noise
// config. A stand outage drops the event entirely.
func (s *Simulator) applyNoise(txn models.Transaction) (models.SaleEvent, bool) {
	mins := txn.MinsFromPuckDrop
	if s.noise.StandOutage != "" && txn.Stand == s.noise.StandOutage &&
		mins >= s.noise.StandOutageStartMin && mins <= s.noise.StandOutageEndMin {
		return models.SaleEvent{}, false
	}

	qty := txn.Qty
	if s.noise.GlobalVolumeFactor > 0 && s.noise.GlobalVolumeFactor != 1 {
		qty = scaleQty(qty, s.noise.GlobalVolumeFactor)
	}
	if s.noise.DemandSpikeStand != "" && txn.Stand == s.noise.DemandSpikeStand &&
		s.noise.DemandSpikeFactor > 0 && mins >= s.noise.DemandSpikeAfterMin {
		qty = scaleQty(qty, s.noise.DemandSpikeFactor)
	}

	return models.SaleEvent{
		Timestamp:        txn.Timestamp,
		Stand:            txn.Stand,
		Item:             txn.Item,
		Category:         txn.Category,
		Qty:              qty,
		MinsFromPuckDrop: mins,
		TimeWindow:       txn.TimeWindow,
	}, true
}

// scaleQty multiplies and rounds, never dropping a sale below one unit.
func scaleQty(qty int, factor float64) int {
	scaled := int(float64(qty)*factor + 0.5)
	if scaled < 1 {
		return 1
	}
	return scaled
}
