package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

func report(overall float64, standDrifts map[string]float64) *models.DriftReport {
	return &models.DriftReport{
		TimeWindow:         20,
		OverallVolumeDrift: overall,
		StandDrifts:        standDrifts,
		ItemDrifts:         map[string]float64{},
	}
}

func TestRuleBasedCauses(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		cause string
	}{
		{
			name:  "redistribution when stands split up and down",
			in:    Input{Report: report(0.05, map[string]float64{"A": 0.25, "B": -0.35})},
			cause: CauseStandRedistribution,
		},
		{
			name:  "surge on strong positive overall",
			in:    Input{Report: report(0.45, map[string]float64{"A": 0.45})},
			cause: CauseVolumeSurge,
		},
		{
			name:  "drop on strong negative overall",
			in:    Input{Report: report(-0.45, map[string]float64{"A": -0.2})},
			cause: CauseVolumeDrop,
		},
		{
			name:  "noise otherwise",
			in:    Input{Report: report(0.10, map[string]float64{"A": 0.1})},
			cause: CauseNoise,
		},
		{
			name:  "noise with nil report",
			in:    Input{},
			cause: CauseNoise,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewRuleBased().Classify(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.Cause != tt.cause {
				t.Errorf("Expected cause %q, got %q", tt.cause, result.Cause)
			}
			if result.AlertText == "" {
				t.Error("Expected alert text")
			}
		})
	}
}

func TestRuleBasedIsDeterministic(t *testing.T) {
	in := Input{Report: report(0.45, map[string]float64{"A": 0.45, "B": 0.5})}
	first, _ := NewRuleBased().Classify(context.Background(), in)
	second, _ := NewRuleBased().Classify(context.Background(), in)
	if first.Cause != second.Cause || first.AlertText != second.AlertText {
		t.Errorf("Expected identical results, got %+v vs %+v", first, second)
	}
}

func remoteConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Classifier.Enabled = true
	cfg.Classifier.URL = url
	cfg.Classifier.MaxRetries = 2
	cfg.Classifier.RetryDelayBase = 0
	return cfg
}

func TestRemoteClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		var in Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		if in.Opponent != "Kamloops" {
			t.Errorf("Expected opponent in payload, got %q", in.Opponent)
		}
		json.NewEncoder(w).Encode(Result{
			Cause:      CauseVolumeSurge,
			Confidence: 0.9,
			AlertText:  "Scale up.",
		})
	}))
	defer server.Close()

	remote := NewRemote(remoteConfig(t, server.URL))
	result, err := remote.Classify(context.Background(), Input{
		Report:   report(0.4, nil),
		Opponent: "Kamloops",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Cause != CauseVolumeSurge || result.Confidence != 0.9 {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Result{Cause: CauseNoise})
	}))
	defer server.Close()

	result, err := NewRemote(remoteConfig(t, server.URL)).Classify(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if result.Cause != CauseNoise {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestRemoteExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewRemote(remoteConfig(t, server.URL)).Classify(context.Background(), Input{})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "max retries") {
		t.Errorf("Unexpected error: %v", err)
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, Input) (Result, error) {
	return Result{}, errors.New("unreachable")
}

func TestFailoverFallsBackToRuleBased(t *testing.T) {
	f := NewFailover(failingClassifier{}, NewRuleBased())
	result, err := f.Classify(context.Background(), Input{Report: report(0.5, nil)})
	if err != nil {
		t.Fatalf("Failover must never fail, got %v", err)
	}
	if result.Cause != CauseVolumeSurge {
		t.Errorf("Expected rule-based surge, got %q", result.Cause)
	}
}

func TestForConfigSelection(t *testing.T) {
	cfg := config.Default()
	if _, ok := ForConfig(cfg).(*RuleBased); !ok {
		t.Error("Expected rule-based classifier when remote is disabled")
	}
	cfg.Classifier.Enabled = true
	cfg.Classifier.URL = "http://localhost:9999"
	if _, ok := ForConfig(cfg).(*Failover); !ok {
		t.Error("Expected failover classifier when remote is enabled")
	}
}
