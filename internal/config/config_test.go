package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	content := `
forecast:
  prep_target_shelf_stable: 0.95
  prep_target_medium_hold: 0.85
  prep_target_short_life: 0.75

drift:
  volume_threshold: 0.15
  mix_threshold: 0.30
  min_samples: 5

traffic_light:
  green_threshold: 0.15
  yellow_threshold: 0.30

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true
  cooldown: 10m

storage:
  file_path: "./data/test.json"
  data_dir: "./data"

logging:
  level: "info"
  format: "text"
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Drift.VolumeThreshold != 0.15 {
		t.Errorf("Expected volume threshold 0.15, got %v", cfg.Drift.VolumeThreshold)
	}
	if cfg.Telegram.Cooldown != 10*time.Minute {
		t.Errorf("Expected cooldown 10m, got %v", cfg.Telegram.Cooldown)
	}
	// Unset sections should pick up defaults
	if cfg.Forecast.PlayoffBoost != 1.15 {
		t.Errorf("Expected default playoff boost 1.15, got %v", cfg.Forecast.PlayoffBoost)
	}
	if cfg.Backtest.TopItems != 15 {
		t.Errorf("Expected default top_items 15, got %v", cfg.Backtest.TopItems)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config must validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero prep target", func(c *Config) { c.Forecast.PrepTargetShortLife = 0 }},
		{"prep target above 1", func(c *Config) { c.Forecast.PrepTargetShelfStable = 1.2 }},
		{"inverted window range", func(c *Config) { c.Forecast.WindowMin = 200 }},
		{"negative min samples", func(c *Config) { c.Drift.MinSamples = -1 }},
		{"yellow below green", func(c *Config) { c.TrafficLight.YellowThreshold = 0.05 }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"classifier enabled without url", func(c *Config) { c.Classifier.Enabled = true }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero replay speed", func(c *Config) { c.Replay.Speed = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s, got nil", tt.name)
			}
		})
	}
}

func TestPerishabilityTier(t *testing.T) {
	tests := []struct {
		item string
		want string
	}{
		{"Fries", TierShortLife},
		{"Draught Beer", TierMediumHold},
		{"Cans of Beer", TierShelfStable},
		{"Mystery Item", TierMediumHold}, // unknown items default to medium hold
	}
	for _, tt := range tests {
		if got := PerishabilityTier(tt.item); got != tt.want {
			t.Errorf("PerishabilityTier(%q) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestPrepTargetOrdering(t *testing.T) {
	cfg := Default()
	// Less perishable items get a larger share of the forecast prepped.
	if !(cfg.PrepTarget(TierShelfStable) > cfg.PrepTarget(TierMediumHold) &&
		cfg.PrepTarget(TierMediumHold) > cfg.PrepTarget(TierShortLife)) {
		t.Errorf("prep targets must decrease with perishability: %v %v %v",
			cfg.PrepTarget(TierShelfStable), cfg.PrepTarget(TierMediumHold), cfg.PrepTarget(TierShortLife))
	}
}
