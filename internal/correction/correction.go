// Package correction learns a post-hoc multiplier for total-volume forecasts
// from leave-one-out residuals. Each historical game is forecast without its
// own data, the ratio actual/forecast becomes the training target, and a
// ridge regression over game features predicts that ratio for future games.
// When the dataset is too small to fit the regression, a per-archetype mean
// correction is used instead.
package correction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/forecast"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/logger"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/profile"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/storage"
)

const (
	methodRidge         = "ridge"
	methodArchetypeMean = "archetype_mean"
)

var featureNames = []string{
	"attendance_z", "is_weekend", "is_promo", "is_playoff",
	"temp_mean_z", "arch_beer", "arch_family",
	"div_US", "div_BC", "div_East", "puck_drop_hour",
}

// FeatureStats holds the moments used to standardize continuous features.
// Stored with the model so inference standardizes identically to training.
type FeatureStats struct {
	AttMean  float64 `json:"att_mean"`
	AttStd   float64 `json:"att_std"`
	TempMean float64 `json:"temp_mean"`
	TempStd  float64 `json:"temp_std"`
}

// GameDetail records one training sample for later inspection.
type GameDetail struct {
	Date       string  `json:"date"`
	Actual     int     `json:"actual"`
	Forecast   int     `json:"forecast"`
	Correction float64 `json:"correction"`
}

// Model is the serialized correction model.
type Model struct {
	Method       string       `json:"method"`
	TrainedAt    time.Time    `json:"trained_at"`
	FeatureNames []string     `json:"feature_names"`
	FeatureStats FeatureStats `json:"feature_stats"`
	NGames       int          `json:"n_games"`

	MeanCorrection   float64 `json:"mean_correction"`
	MedianCorrection float64 `json:"median_correction"`

	// Ridge fields
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	LOOMae       float64   `json:"loo_mae,omitempty"`
	LOORmse      float64   `json:"loo_rmse,omitempty"`
	R2LOO        float64   `json:"r2_loo,omitempty"`

	// Archetype-mean fields
	ArchetypeCorrections map[string]float64 `json:"archetype_corrections,omitempty"`

	GameDetails []GameDetail `json:"game_details"`
}

// Corrector applies a trained model to upcoming games. A nil model yields a
// neutral factor of 1.0, so callers never need to special-case the untrained
// state.
type Corrector struct {
	cfg   *config.Config
	model *Model
}

// NewCorrector wraps a model (possibly nil) with the configured clamp bounds.
func NewCorrector(cfg *config.Config, model *Model) *Corrector {
	return &Corrector{cfg: cfg, model: model}
}

// Factor returns the correction multiplier for a game, clamped to the
// configured range.
func (c *Corrector) Factor(game models.Game) float64 {
	if c.model == nil {
		return 1.0
	}

	var raw float64
	switch c.model.Method {
	case methodRidge:
		fv := featureVector(game, c.model.FeatureStats)
		raw = c.model.Intercept
		for i, coef := range c.model.Coefficients {
			raw += coef * fv[i]
		}
	case methodArchetypeMean:
		arch := game.Archetype
		if arch == "" {
			arch = models.ArchetypeMixed
		}
		corr, ok := c.model.ArchetypeCorrections[arch]
		if !ok {
			corr = c.model.MeanCorrection
		}
		raw = corr
	default:
		raw = c.model.MeanCorrection
	}

	return clamp(raw, c.cfg.Correction.ClampMin, c.cfg.Correction.ClampMax)
}

// Train fits the correction model on leave-one-out residuals over the stored
// dataset. Games whose held-out forecast or actual total is non-positive are
// excluded from the sample.
func Train(cfg *config.Config, repo *storage.Repository) (*Model, error) {
	games := repo.Games()
	if len(games) < 2 {
		return nil, errors.New("correction training needs at least 2 games")
	}

	stats := computeStats(games)
	gen := forecast.NewGenerator(cfg)

	var (
		features [][]float64
		targets  []float64
		details  []GameDetail
		archs    []string
	)
	for _, game := range games {
		trainTxns := repo.TransactionsExcluding(game.Date)
		if len(trainTxns) == 0 {
			continue
		}
		ps := profile.Build(trainTxns, repo.GamesExcluding(game.Date))
		fc := gen.Generate(game.Context(), ps)

		forecastTotal := 0
		for _, row := range fc.ItemForecast {
			forecastTotal += row.ExpectedQty
		}
		actualTotal := 0
		for _, txn := range repo.TransactionsForGame(game.Date) {
			actualTotal += txn.Qty
		}
		if forecastTotal <= 0 || actualTotal <= 0 {
			continue
		}

		target := float64(actualTotal) / float64(forecastTotal)
		targets = append(targets, target)
		features = append(features, featureVector(game, stats))
		archs = append(archs, game.Archetype)
		details = append(details, GameDetail{
			Date:       game.Date,
			Actual:     actualTotal,
			Forecast:   forecastTotal,
			Correction: math.Round(target*10000) / 10000,
		})
	}
	if len(targets) == 0 {
		return nil, errors.New("no usable residuals to train on")
	}

	model := &Model{
		TrainedAt:        time.Now().UTC(),
		FeatureNames:     featureNames,
		FeatureStats:     stats,
		NGames:           len(targets),
		MeanCorrection:   mean(targets),
		MedianCorrection: median(targets),
		GameDetails:      details,
	}

	// Ridge needs more samples than features to be worth fitting; thin
	// datasets get the archetype-mean fallback instead.
	if len(targets) > len(featureNames)+1 {
		intercept, coefs, err := fitRidge(features, targets, cfg.Correction.RidgeLambda)
		if err == nil {
			model.Method = methodRidge
			model.Intercept = intercept
			model.Coefficients = coefs
			model.LOOMae, model.LOORmse, model.R2LOO = looMetrics(features, targets, cfg.Correction.RidgeLambda)
			logger.Info("Correction model trained on %d games (ridge, LOO MAE %.4f, R2 %.3f)",
				model.NGames, model.LOOMae, model.R2LOO)
			return model, nil
		}
		logger.Warn("Ridge fit failed (%v), falling back to archetype means", err)
	}

	model.Method = methodArchetypeMean
	model.ArchetypeCorrections = archetypeMeans(archs, targets)
	logger.Info("Correction model trained on %d games (archetype means)", model.NGames)
	return model, nil
}

// Save writes the model atomically next to the other persisted state.
func Save(model *Model, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal correction model: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace model file: %w", err)
	}
	return nil
}

// Load reads a previously trained model. A missing file returns a nil model
// without error.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read correction model: %w", err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse correction model: %w", err)
	}
	return &model, nil
}

func featureVector(g models.Game, stats FeatureStats) []float64 {
	attZ := 0.0
	if stats.AttStd > 0 {
		attZ = (float64(g.Attendance) - stats.AttMean) / stats.AttStd
	}
	tempZ := 0.0
	if stats.TempStd > 0 {
		tempZ = (g.TempMean - stats.TempMean) / stats.TempStd
	}
	div := g.OpponentDivision
	return []float64{
		attZ,
		boolFeature(g.IsWeekend),
		boolFeature(g.IsPromo),
		boolFeature(g.IsPlayoff),
		tempZ,
		boolFeature(g.Archetype == models.ArchetypeBeerCrowd),
		boolFeature(g.Archetype == models.ArchetypeFamily),
		boolFeature(div == "US"),
		boolFeature(div == "BC"),
		boolFeature(div == "East"),
		float64(g.PuckDropHour),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func computeStats(games []models.Game) FeatureStats {
	var att, temp []float64
	for _, g := range games {
		att = append(att, float64(g.Attendance))
		temp = append(temp, g.TempMean)
	}
	return FeatureStats{
		AttMean:  mean(att),
		AttStd:   stddev(att),
		TempMean: mean(temp),
		TempStd:  stddev(temp),
	}
}

// fitRidge solves the penalized least squares problem with an unpenalized
// intercept. Features and targets are centered, the normal equations
// (Xc'Xc + lambda*I) w = Xc'y are solved directly, and the intercept is
// recovered from the means.
func fitRidge(features [][]float64, targets []float64, lambda float64) (float64, []float64, error) {
	n := len(features)
	p := len(features[0])

	colMeans := make([]float64, p)
	for _, row := range features {
		for j, v := range row {
			colMeans[j] += v
		}
	}
	for j := range colMeans {
		colMeans[j] /= float64(n)
	}
	yMean := mean(targets)

	a := make([][]float64, p)
	for j := range a {
		a[j] = make([]float64, p)
		a[j][j] = lambda
	}
	b := make([]float64, p)
	for i, row := range features {
		yc := targets[i] - yMean
		for j := 0; j < p; j++ {
			xj := row[j] - colMeans[j]
			b[j] += xj * yc
			for k := j; k < p; k++ {
				a[j][k] += xj * (row[k] - colMeans[k])
			}
		}
	}
	for j := 0; j < p; j++ {
		for k := 0; k < j; k++ {
			a[j][k] = a[k][j]
		}
	}

	coefs, err := solveLinear(a, b)
	if err != nil {
		return 0, nil, err
	}

	intercept := yMean
	for j, w := range coefs {
		intercept -= w * colMeans[j]
	}
	return intercept, coefs, nil
}

// solveLinear performs Gaussian elimination with partial pivoting. The
// matrices here are tiny (one row per feature), so no decomposition library
// is warranted.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular system")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			f := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// looMetrics refits the ridge once per sample with that sample held out and
// scores the held-out predictions.
func looMetrics(features [][]float64, targets []float64, lambda float64) (mae, rmse, r2 float64) {
	n := len(targets)
	preds := make([]float64, n)
	for i := 0; i < n; i++ {
		trainX := make([][]float64, 0, n-1)
		trainY := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			trainX = append(trainX, features[j])
			trainY = append(trainY, targets[j])
		}
		intercept, coefs, err := fitRidge(trainX, trainY, lambda)
		if err != nil {
			preds[i] = mean(trainY)
			continue
		}
		preds[i] = intercept
		for j, c := range coefs {
			preds[i] += c * features[i][j]
		}
	}

	var absSum, sqSum, totSS float64
	yMean := mean(targets)
	for i := range targets {
		r := targets[i] - preds[i]
		absSum += math.Abs(r)
		sqSum += r * r
		d := targets[i] - yMean
		totSS += d * d
	}
	mae = absSum / float64(n)
	rmse = math.Sqrt(sqSum / float64(n))
	if totSS > 0 {
		r2 = 1 - sqSum/totSS
	}
	return mae, rmse, r2
}

func archetypeMeans(archs []string, targets []float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, arch := range archs {
		if arch == "" {
			arch = models.ArchetypeMixed
		}
		sums[arch] += targets[i]
		counts[arch]++
	}
	out := make(map[string]float64, len(sums))
	for arch, sum := range sums {
		out[arch] = sum / float64(counts[arch])
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
