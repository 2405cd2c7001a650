package replay

import (
	"fmt"
	"math"
	"sort"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/storage"
)

// Scenario is a pre-configured replay for demos and monitoring shakedowns.
type Scenario struct {
	Key         string
	Name        string
	Description string
	GameDate    string
	Noise       NoiseConfig
}

// Scenarios builds the preset catalog against the stored dataset. Each preset
// picks a representative game; presets whose preferred game type does not
// exist in the data fall back to the default pick.
func Scenarios(repo *storage.Repository) ([]Scenario, error) {
	games := repo.Games()
	if len(games) == 0 {
		return nil, fmt.Errorf("no games stored, cannot build scenarios")
	}

	normalDate := pickGame(games, models.ArchetypeMixed, false)
	familyDate := pickGame(games, models.ArchetypeFamily, false)
	playoffDate := firstMatching(games, func(g models.Game) bool { return g.IsPlayoff })
	promoDate := firstMatching(games, func(g models.Game) bool { return g.IsPromo })
	if playoffDate == "" {
		playoffDate = normalDate
	}
	if promoDate == "" {
		promoDate = normalDate
	}

	return []Scenario{
		{
			Key:         "normal",
			Name:        "Normal Game",
			Description: "Standard mixed-crowd game. Forecast should track with minor drift.",
			GameDate:    normalDate,
		},
		{
			Key:         "untagged_promo",
			Name:        "Untagged Promo",
			Description: "The system does not know it is a promo night. Demand runs 40% hot.",
			GameDate:    promoDate,
			Noise:       NoiseConfig{GlobalVolumeFactor: 1.4},
		},
		{
			Key:         "stand_redistribution",
			Name:        "Stand Redistribution",
			Description: "Island Canteen goes down during the first intermission and the taco stand absorbs the line.",
			GameDate:    normalDate,
			Noise: NoiseConfig{
				StandOutage:         "SOFMC Island Canteen",
				StandOutageStartMin: 20,
				StandOutageEndMin:   50,
				DemandSpikeStand:    "SOFMC TacoTacoTaco",
				DemandSpikeFactor:   1.8,
				DemandSpikeAfterMin: 20,
			},
		},
		{
			Key:         "weather_surprise",
			Name:        "Weather Surprise",
			Description: "Unseasonably warm day on a typically low-beer game; actuals run above the cold-weather forecast.",
			GameDate:    familyDate,
			Noise:       NoiseConfig{GlobalVolumeFactor: 1.15},
		},
		{
			Key:         "playoff",
			Name:        "Playoff Game",
			Description: "Real playoff game data, high intensity and beer-heavy.",
			GameDate:    playoffDate,
		},
	}, nil
}

// ScenarioByKey looks up a preset by its key.
func ScenarioByKey(repo *storage.Repository, key string) (Scenario, error) {
	scenarios, err := Scenarios(repo)
	if err != nil {
		return Scenario{}, err
	}
	for _, sc := range scenarios {
		if sc.Key == key {
			return sc, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q", key)
}

// pickGame selects the median-attendance game of an archetype, falling back
// to the whole dataset when no game matches.
func pickGame(games []models.Game, archetype string, isPlayoff bool) string {
	var candidates []models.Game
	for _, g := range games {
		if g.Archetype == archetype && g.IsPlayoff == isPlayoff {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		candidates = games
	}

	atts := make([]int, len(candidates))
	for i, g := range candidates {
		atts[i] = g.Attendance
	}
	sort.Ints(atts)
	medianAtt := atts[len(atts)/2]

	best := candidates[0]
	bestDiff := math.MaxInt
	for _, g := range candidates {
		diff := g.Attendance - medianAtt
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = g, diff
		}
	}
	return best.Date
}

func firstMatching(games []models.Game, match func(models.Game) bool) string {
	for _, g := range games {
		if match(g) {
			return g.Date
		}
	}
	return ""
}
