package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Forecast     ForecastConfig     `mapstructure:"forecast"`
	Drift        DriftConfig        `mapstructure:"drift"`
	TrafficLight TrafficLightConfig `mapstructure:"traffic_light"`
	Backtest     BacktestConfig     `mapstructure:"backtest"`
	Correction   CorrectionConfig   `mapstructure:"correction"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Replay       ReplayConfig       `mapstructure:"replay"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ForecastConfig holds forecast generation tunables
type ForecastConfig struct {
	// Prep fraction of forecast actually prepped, per perishability tier.
	// Deliberately below 1.0: overprepping perishables is pure waste, while
	// underprepping only slows service.
	PrepTargetShelfStable float64 `mapstructure:"prep_target_shelf_stable"`
	PrepTargetMediumHold  float64 `mapstructure:"prep_target_medium_hold"`
	PrepTargetShortLife   float64 `mapstructure:"prep_target_short_life"`

	// Temperature adjustment: +3% beer demand per degree above the 8°C
	// reference, clamped to [0.7, 1.5]. Hot drinks get the reciprocal.
	TempReferenceC  float64 `mapstructure:"temp_reference_c"`
	TempBeerPerDegC float64 `mapstructure:"temp_beer_per_deg_c"`
	BeerFactorMin   float64 `mapstructure:"beer_factor_min"`
	BeerFactorMax   float64 `mapstructure:"beer_factor_max"`

	PromoHotDogFactor float64 `mapstructure:"promo_hot_dog_factor"`
	PlayoffBoost      float64 `mapstructure:"playoff_boost"`

	// Supported window range in minutes from puck drop; curves outside are dropped.
	WindowMin int `mapstructure:"window_min"`
	WindowMax int `mapstructure:"window_max"`
}

// DriftConfig holds drift detection thresholds
type DriftConfig struct {
	VolumeThreshold float64 `mapstructure:"volume_threshold"` // overall/stand volume drift floor
	MixThreshold    float64 `mapstructure:"mix_threshold"`    // per-item drift floor (items are noisier)
	MinSamples      int     `mapstructure:"min_samples"`      // txns required before the overall signal fires
}

// TrafficLightConfig holds operational status thresholds.
// These are deliberately different cut points from the drift severity
// thresholds: glanceability for operators vs alert sensitivity.
type TrafficLightConfig struct {
	GreenThreshold  float64 `mapstructure:"green_threshold"`
	YellowThreshold float64 `mapstructure:"yellow_threshold"`
	TrendDelta      float64 `mapstructure:"trend_delta"`      // pp change over last 3 samples to call a trend
	CumulativeFloor int     `mapstructure:"cumulative_floor"` // min accrued forecast units before cumulative drift is shown
}

// BacktestConfig holds leave-one-out validation options
type BacktestConfig struct {
	Workers  int `mapstructure:"workers"`   // 0 = NumCPU
	TopItems int `mapstructure:"top_items"` // item MAPE restricted to top-N items by actual volume
}

// CorrectionConfig holds post-hoc correction model options
type CorrectionConfig struct {
	RidgeLambda float64 `mapstructure:"ridge_lambda"`
	ClampMin    float64 `mapstructure:"clamp_min"`
	ClampMax    float64 `mapstructure:"clamp_max"`
	ModelPath   string  `mapstructure:"model_path"`
}

// ClassifierConfig holds the remote drift-reasoning service configuration.
// When disabled or unreachable, the deterministic rule-based classifier is used.
type ClassifierConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// TelegramConfig holds shift-manager alert configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	Cooldown       time.Duration `mapstructure:"cooldown"` // per-stand alert dedup window
}

// ReplayConfig holds game replay engine defaults
type ReplayConfig struct {
	Speed float64 `mapstructure:"speed"` // game-minutes per wall-clock minute
}

// StorageConfig holds dataset persistence configuration
type StorageConfig struct {
	FilePath string `mapstructure:"file_path"`
	DataDir  string `mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("PUCKSIGHT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns a Config populated with defaults only, without reading a
// file. Used by tests and by callers that inject everything programmatically.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are statically known; unmarshal cannot fail on them.
		panic(fmt.Sprintf("default config unmarshal: %v", err))
	}
	return &cfg
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Forecast defaults
	v.SetDefault("forecast.prep_target_shelf_stable", 0.95)
	v.SetDefault("forecast.prep_target_medium_hold", 0.85)
	v.SetDefault("forecast.prep_target_short_life", 0.75)
	v.SetDefault("forecast.temp_reference_c", 8.0)
	v.SetDefault("forecast.temp_beer_per_deg_c", 0.03)
	v.SetDefault("forecast.beer_factor_min", 0.7)
	v.SetDefault("forecast.beer_factor_max", 1.5)
	v.SetDefault("forecast.promo_hot_dog_factor", 2.5)
	v.SetDefault("forecast.playoff_boost", 1.15)
	v.SetDefault("forecast.window_min", -90)
	v.SetDefault("forecast.window_max", 120)

	// Drift defaults
	v.SetDefault("drift.volume_threshold", 0.15)
	v.SetDefault("drift.mix_threshold", 0.30)
	v.SetDefault("drift.min_samples", 5)

	// Traffic light defaults
	v.SetDefault("traffic_light.green_threshold", 0.15)
	v.SetDefault("traffic_light.yellow_threshold", 0.30)
	v.SetDefault("traffic_light.trend_delta", 0.05)
	v.SetDefault("traffic_light.cumulative_floor", 500)

	// Backtest defaults
	v.SetDefault("backtest.workers", 0)
	v.SetDefault("backtest.top_items", 15)

	// Correction defaults
	v.SetDefault("correction.ridge_lambda", 1.0)
	v.SetDefault("correction.clamp_min", 0.5)
	v.SetDefault("correction.clamp_max", 1.5)
	v.SetDefault("correction.model_path", "./data/correction_model.json")

	// Classifier defaults
	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.timeout", "10s")
	v.SetDefault("classifier.max_retries", 2)
	v.SetDefault("classifier.retry_delay_base", "1s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.cooldown", "10m")

	// Replay defaults
	v.SetDefault("replay.speed", 60.0)

	// Storage defaults
	v.SetDefault("storage.file_path", "./data/pucksight.json")
	v.SetDefault("storage.data_dir", "./data")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	for name, target := range map[string]float64{
		"forecast.prep_target_shelf_stable": c.Forecast.PrepTargetShelfStable,
		"forecast.prep_target_medium_hold":  c.Forecast.PrepTargetMediumHold,
		"forecast.prep_target_short_life":   c.Forecast.PrepTargetShortLife,
	} {
		if target <= 0.0 || target > 1.0 {
			return fmt.Errorf("%s must be in (0.0, 1.0]", name)
		}
	}
	if c.Forecast.BeerFactorMin <= 0 || c.Forecast.BeerFactorMax < c.Forecast.BeerFactorMin {
		return fmt.Errorf("forecast beer factor clamp [%.2f, %.2f] is invalid",
			c.Forecast.BeerFactorMin, c.Forecast.BeerFactorMax)
	}
	if c.Forecast.WindowMin >= c.Forecast.WindowMax {
		return fmt.Errorf("forecast.window_min must be below forecast.window_max")
	}

	if c.Drift.VolumeThreshold <= 0.0 || c.Drift.VolumeThreshold > 1.0 {
		return fmt.Errorf("drift.volume_threshold must be between 0.0 and 1.0")
	}
	if c.Drift.MixThreshold <= 0.0 || c.Drift.MixThreshold > 1.0 {
		return fmt.Errorf("drift.mix_threshold must be between 0.0 and 1.0")
	}
	if c.Drift.MinSamples < 0 {
		return fmt.Errorf("drift.min_samples must not be negative")
	}

	if c.TrafficLight.GreenThreshold <= 0.0 || c.TrafficLight.YellowThreshold <= c.TrafficLight.GreenThreshold {
		return fmt.Errorf("traffic_light thresholds must satisfy 0 < green < yellow")
	}

	if c.TrafficLight.CumulativeFloor < 0 {
		return fmt.Errorf("traffic_light.cumulative_floor must not be negative")
	}

	if c.Backtest.Workers < 0 {
		return fmt.Errorf("backtest.workers must not be negative")
	}
	if c.Backtest.TopItems < 1 {
		return fmt.Errorf("backtest.top_items must be at least 1")
	}

	if c.Correction.ClampMin <= 0.0 || c.Correction.ClampMax <= c.Correction.ClampMin {
		return fmt.Errorf("correction clamp [%.2f, %.2f] is invalid",
			c.Correction.ClampMin, c.Correction.ClampMax)
	}

	if c.Classifier.Enabled {
		if c.Classifier.URL == "" {
			return fmt.Errorf("classifier.url is required when classifier is enabled")
		}
		if c.Classifier.Timeout < time.Second {
			return fmt.Errorf("classifier.timeout must be at least 1 second")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Replay.Speed <= 0 {
		return fmt.Errorf("replay.speed must be positive")
	}

	if c.Storage.FilePath == "" {
		return fmt.Errorf("storage.file_path is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// PrepTarget returns the prep fraction for a perishability tier.
// Unknown tiers get the medium-hold target.
func (c *Config) PrepTarget(tier string) float64 {
	switch tier {
	case TierShelfStable:
		return c.Forecast.PrepTargetShelfStable
	case TierShortLife:
		return c.Forecast.PrepTargetShortLife
	default:
		return c.Forecast.PrepTargetMediumHold
	}
}
