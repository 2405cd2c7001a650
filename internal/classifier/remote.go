package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/logger"
)

// Remote calls an external reasoning service over HTTP. The service receives
// the full Input as JSON and answers with a Result.
type Remote struct {
	url        string
	httpClient *http.Client
	maxRetries int
	retryBase  time.Duration
}

// NewRemote creates a remote classifier from config.
func NewRemote(cfg *config.Config) *Remote {
	return &Remote{
		url: cfg.Classifier.URL,
		httpClient: &http.Client{
			Timeout: cfg.Classifier.Timeout,
		},
		maxRetries: cfg.Classifier.MaxRetries,
		retryBase:  cfg.Classifier.RetryDelayBase,
	}
}

// Classify implements DriftClassifier with retry on transport and 5xx errors.
func (r *Remote) Classify(ctx context.Context, in Input) (Result, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode classify request: %w", err)
	}

	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i) * r.retryBase):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
		if err != nil {
			return Result{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return Result{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		var result Result
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return Result{}, fmt.Errorf("failed to decode classify response: %w", err)
		}
		if result.Cause == "" {
			result.Cause = CauseNoise
		}
		return result, nil
	}

	return Result{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Failover tries the primary classifier and falls back on any error. Classify
// never returns an error from a Failover.
type Failover struct {
	primary  DriftClassifier
	fallback DriftClassifier
}

// NewFailover wraps a primary classifier with a fallback.
func NewFailover(primary, fallback DriftClassifier) *Failover {
	return &Failover{primary: primary, fallback: fallback}
}

// Classify implements DriftClassifier.
func (f *Failover) Classify(ctx context.Context, in Input) (Result, error) {
	result, err := f.primary.Classify(ctx, in)
	if err == nil {
		return result, nil
	}
	logger.Warn("Remote classifier unavailable, using rule-based fallback: %v", err)
	return f.fallback.Classify(ctx, in)
}

// ForConfig selects the classifier implementation: rule-based when the remote
// service is disabled, otherwise remote with automatic failover.
func ForConfig(cfg *config.Config) DriftClassifier {
	if !cfg.Classifier.Enabled || cfg.Classifier.URL == "" {
		return NewRuleBased()
	}
	return NewFailover(NewRemote(cfg), NewRuleBased())
}
