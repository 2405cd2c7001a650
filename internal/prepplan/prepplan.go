// Package prepplan turns a demand forecast into a time-ordered kitchen
// schedule. Each perishability tier gets its own strategy: shelf-stable items
// are pre-staged in full before doors open, medium-hold items are batched
// before puck drop and refreshed at the intermissions, and short-life items
// are cooked continuously per window with an explicit stop signal once
// late-game demand collapses.
package prepplan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/config"
	"github.com/YatinDanani/VIC-SAVE-PUCK/internal/models"
)

// Prep action kinds
const (
	ActionPreStage       = "pre_stage"
	ActionBatch          = "batch"
	ActionRefreshBatch   = "refresh_batch"
	ActionContinuousCook = "continuous_cook"
	ActionStopPrep       = "stop_prep"
)

// AllStands marks an action that applies venue-wide rather than to one stand.
const AllStands = "ALL"

// Tier schedule anchors, in minutes from puck drop. The refresh windows sit
// at the start of the intermissions (see models.PhaseOf boundaries).
const (
	preStageWindow     = -20
	batchWindow        = -10
	firstIntermission  = 20
	secondIntermission = 58
)

// Short-life prep stops at the first window past this minute whose prep
// quantity falls under this share of the item's peak window.
const (
	stopPrepAfterMin = 60
	stopPrepShare    = 0.1
)

// Action is one line of the prep schedule.
type Action struct {
	TimeWindow int    `json:"time_window"` // minutes from puck drop
	Stand      string `json:"stand"`
	Action     string `json:"action"`
	Item       string `json:"item"`
	Quantity   int    `json:"quantity"`
	Tier       string `json:"tier"`
}

func (a Action) String() string {
	return fmt.Sprintf("T%+5dmin | %-18s | %-16s | %-22s | qty=%d",
		a.TimeWindow, config.ShortStand(a.Stand), a.Action, a.Item, a.Quantity)
}

// Generate converts the forecast's per-item prep targets into a schedule
// sorted by time. Prep quantities (not full expected demand) drive every
// action, so the plan inherits the tier-specific conservatism of the
// forecast's prep targets.
func Generate(fc *models.Forecast) []Action {
	byItem := make(map[string][]models.ItemForecastRow)
	for _, row := range fc.ItemForecast {
		byItem[row.Item] = append(byItem[row.Item], row)
	}
	items := make([]string, 0, len(byItem))
	for item := range byItem {
		items = append(items, item)
	}
	sort.Strings(items)

	var actions []Action
	for _, item := range items {
		rows := byItem[item]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].TimeWindow < rows[j].TimeWindow })

		total := 0
		for _, row := range rows {
			total += row.PrepQty
		}
		if total <= 0 {
			continue
		}

		tier := config.PerishabilityTier(item)
		switch tier {
		case config.TierShelfStable:
			actions = append(actions, Action{
				TimeWindow: preStageWindow,
				Stand:      AllStands,
				Action:     ActionPreStage,
				Item:       item,
				Quantity:   total,
				Tier:       tier,
			})

		case config.TierShortLife:
			actions = append(actions, shortLifeActions(item, tier, rows)...)

		default: // medium_hold
			actions = append(actions, mediumHoldActions(item, tier, rows)...)
		}
	}

	sort.SliceStable(actions, func(i, j int) bool { return actions[i].TimeWindow < actions[j].TimeWindow })
	return actions
}

// mediumHoldActions splits an item's prep into a pre-game batch and one
// refresh per intermission, covering the demand up to the next refresh.
func mediumHoldActions(item, tier string, rows []models.ItemForecastRow) []Action {
	var preGame, midGame, lateGame int
	for _, row := range rows {
		switch {
		case row.TimeWindow < firstIntermission:
			preGame += row.PrepQty
		case row.TimeWindow < secondIntermission:
			midGame += row.PrepQty
		default:
			lateGame += row.PrepQty
		}
	}

	var actions []Action
	if preGame > 0 {
		actions = append(actions, Action{
			TimeWindow: batchWindow, Stand: AllStands, Action: ActionBatch,
			Item: item, Quantity: preGame, Tier: tier,
		})
	}
	if midGame > 0 {
		actions = append(actions, Action{
			TimeWindow: firstIntermission, Stand: AllStands, Action: ActionRefreshBatch,
			Item: item, Quantity: midGame, Tier: tier,
		})
	}
	if lateGame > 0 {
		actions = append(actions, Action{
			TimeWindow: secondIntermission, Stand: AllStands, Action: ActionRefreshBatch,
			Item: item, Quantity: lateGame, Tier: tier,
		})
	}
	return actions
}

// shortLifeActions cooks per window and emits a stop signal at the first
// late-game window whose demand has collapsed relative to the item's peak.
func shortLifeActions(item, tier string, rows []models.ItemForecastRow) []Action {
	var actions []Action
	peak := 0
	for _, row := range rows {
		if row.PrepQty > peak {
			peak = row.PrepQty
		}
		if row.PrepQty > 0 {
			actions = append(actions, Action{
				TimeWindow: row.TimeWindow, Stand: AllStands, Action: ActionContinuousCook,
				Item: item, Quantity: row.PrepQty, Tier: tier,
			})
		}
	}

	for _, row := range rows {
		if row.TimeWindow > stopPrepAfterMin && float64(row.PrepQty) < float64(peak)*stopPrepShare {
			actions = append(actions, Action{
				TimeWindow: row.TimeWindow, Stand: AllStands, Action: ActionStopPrep,
				Item: item, Quantity: 0, Tier: tier,
			})
			break
		}
	}
	return actions
}

// Format renders the plan as a readable table for terminal output.
func Format(actions []Action) string {
	var b strings.Builder
	rule := strings.Repeat("=", 90)
	b.WriteString(rule + "\n")
	b.WriteString(fmt.Sprintf("%10s | %-18s | %-16s | %-22s | Qty\n", "Time", "Stand", "Action", "Item"))
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, a := range actions {
		b.WriteString(a.String() + "\n")
	}
	b.WriteString(rule)
	return b.String()
}
