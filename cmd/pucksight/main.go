package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/alert"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/backtest"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/classifier"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/correction"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/drift"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/forecast"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/logger"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/prepplan"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/profile"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/replay"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/storage"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/trafficlight"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	mode       = flag.String("mode", "forecast", "Run mode: forecast|monitor|backtest|train")
	gameDate   = flag.String("date", "", "Game date (YYYY-MM-DD) for forecast mode")
	scenario   = flag.String("scenario", "normal", "Replay scenario for monitor mode")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Load the dataset and derive per-game enrichment
	repo := storage.New(cfg.Storage.FilePath)
	if err := repo.Load(); err != nil {
		logger.Fatal("Failed to load dataset: %v", err)
	}
	repo.EnrichGames()
	logger.Info("Loaded %d games, %d transactions", len(repo.Games()), len(repo.Transactions()))

	switch *mode {
	case "forecast":
		err = runForecast(cfg, repo, *gameDate)
	case "monitor":
		err = runMonitor(cfg, repo, *scenario)
	case "backtest":
		err = runBacktest(cfg, repo)
	case "train":
		err = runTrain(cfg, repo)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Fatal("%v", err)
	}
}

// runForecast generates and prints the demand forecast for one stored game.
func runForecast(cfg *config.Config, repo *storage.Repository, date string) error {
	if date == "" {
		return fmt.Errorf("forecast mode requires -date")
	}
	game, err := repo.GameByDate(date)
	if err != nil {
		return err
	}

	ps := profile.Build(repo.Transactions(), repo.Games())
	gen := forecast.NewGenerator(cfg)
	fc := gen.Generate(game.Context(), ps)

	if corrector, ok := loadCorrector(cfg); ok {
		factor := corrector.Factor(game)
		forecast.ApplyCorrection(fc, factor)
		logger.Info("Applied correction factor %.3f", factor)
	}

	plan := prepplan.Generate(fc)
	fmt.Fprintln(os.Stderr, prepplan.Format(plan))

	return printJSON(struct {
		Forecast *models.Forecast  `json:"forecast"`
		PrepPlan []prepplan.Action `json:"prep_plan"`
	}{fc, plan})
}

// runMonitor replays a scenario through the live monitoring stack: drift
// detector, traffic light, cause classifier, and the optional alert channel.
func runMonitor(cfg *config.Config, repo *storage.Repository, scenarioKey string) error {
	sc, err := replay.ScenarioByKey(repo, scenarioKey)
	if err != nil {
		return err
	}
	game, err := repo.GameByDate(sc.GameDate)
	if err != nil {
		return err
	}
	logger.Info("Scenario %q: %s", sc.Key, sc.Description)

	// Forecast the replayed game without its own data, the same blind view
	// the system would have before a real game.
	trainTxns := repo.TransactionsExcluding(sc.GameDate)
	if len(trainTxns) == 0 {
		return fmt.Errorf("no training data outside %s", sc.GameDate)
	}
	ps := profile.Build(trainTxns, repo.GamesExcluding(sc.GameDate))
	fc := forecast.NewGenerator(cfg).Generate(game.Context(), ps)
	if corrector, ok := loadCorrector(cfg); ok {
		forecast.ApplyCorrection(fc, corrector.Factor(game))
	}

	detector := drift.NewDetector(cfg, fc)
	lights := trafficlight.NewMonitor(cfg, detector)
	causes := classifier.ForConfig(cfg)

	var alerts *alert.Client
	if cfg.Telegram.Enabled {
		alerts, err = alert.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize alert client: %w", err)
		}
		logger.Info("Telegram alerts enabled")
	} else {
		logger.Debug("Telegram alerts disabled")
	}

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping replay...")
		cancel()
	}()

	sim, err := replay.New(repo, sc.GameDate, cfg.Replay.Speed, sc.Noise)
	if err != nil {
		return err
	}
	sim.OnEvent(detector.IngestEvent)
	sim.OnWindowClose(func(timeWindow int, _ []models.SaleEvent) {
		report, err := detector.CheckDrift(timeWindow)
		if err != nil {
			logger.Warn("Drift check for window %+d: %v", timeWindow, err)
			return
		}
		status := lights.Update(timeWindow)
		logger.Info("Window %+d: %s | %s", timeWindow, status.OverallStatus, lights.SummaryLine())

		if report == nil || len(report.Signals) == 0 {
			return
		}
		result, err := causes.Classify(ctx, classifier.Input{
			Report:          report,
			Opponent:        game.Opponent,
			Attendance:      game.Attendance,
			Archetype:       game.Archetype,
			CumulativeDrift: detector.CumulativeDrift(),
			Recent:          detector.History(),
		})
		if err != nil {
			logger.Warn("Classification failed: %v", err)
			return
		}
		logger.Info("Window %+d cause: %s (confidence %.2f)", timeWindow, result.Cause, result.Confidence)
		if alerts != nil {
			if err := alerts.SendDriftAlert(report, result); err != nil {
				logger.Error("Failed to send drift alert: %v", err)
			}
		}
	})

	if _, err := sim.Run(ctx); err != nil {
		logger.Warn("Replay ended early: %v", err)
	}

	summary := detector.Summary()
	logger.Info("Replay complete: %s", lights.SummaryLine())
	if alerts != nil {
		if err := alerts.SendSummary(summary); err != nil {
			logger.Error("Failed to send summary: %v", err)
		}
	}
	return printJSON(summary)
}

// runBacktest validates the forecast over every stored game and prints the
// per-game results with an aggregate summary.
func runBacktest(cfg *config.Config, repo *storage.Repository) error {
	var corrector backtest.Corrector
	if c, ok := loadCorrector(cfg); ok {
		corrector = c
		logger.Info("Backtesting with correction model")
	}

	results := backtest.New(cfg).Run(repo, corrector)
	if len(results) == 0 {
		return fmt.Errorf("no games could be validated")
	}

	return printJSON(struct {
		Results []models.GameResult `json:"results"`
		Summary backtest.Summary    `json:"summary"`
	}{results, backtest.Summarize(results)})
}

// runTrain fits the correction model from leave-one-out residuals and saves
// it for the forecast and backtest modes to pick up.
func runTrain(cfg *config.Config, repo *storage.Repository) error {
	model, err := correction.Train(cfg, repo)
	if err != nil {
		return fmt.Errorf("failed to train correction model: %w", err)
	}
	if err := correction.Save(model, cfg.Correction.ModelPath); err != nil {
		return err
	}
	logger.Info("Correction model saved to %s", cfg.Correction.ModelPath)
	return printJSON(model)
}

// loadCorrector loads the trained correction model if one exists.
func loadCorrector(cfg *config.Config) (*correction.Corrector, bool) {
	model, err := correction.Load(cfg.Correction.ModelPath)
	if err != nil {
		logger.Warn("Failed to load correction model: %v", err)
		return nil, false
	}
	if model == nil {
		return nil, false
	}
	return correction.NewCorrector(cfg, model), true
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
