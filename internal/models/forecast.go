package models

// GameContext carries the pre-game attributes the forecast is conditioned on.
type GameContext struct {
	Attendance   int     `json:"attendance"`
	PuckDropHour int     `json:"puck_drop_hour"`
	IsPlayoff    bool    `json:"is_playoff"`
	IsPromo      bool    `json:"is_promo"`
	PromoType    string  `json:"promo_type,omitempty"`
	TempMean     float64 `json:"temp_mean"`
	DayOfWeek    string  `json:"day_of_week"`
}

// StandForecastRow is the expected quantity for one stand in one time window.
type StandForecastRow struct {
	Stand       string `json:"stand"`
	TimeWindow  int    `json:"time_window"`
	ExpectedQty int    `json:"expected_qty"`
}

// ItemForecastRow is the expected and prep quantity for one item in one
// time window. ExpectedQty is the full demand estimate used by the drift
// detector as ground truth; PrepQty is the deliberately reduced operational
// guidance derived from the item's perishability tier.
type ItemForecastRow struct {
	Item          string `json:"item"`
	TimeWindow    int    `json:"time_window"`
	ExpectedQty   int    `json:"expected_qty"`
	PrepQty       int    `json:"prep_qty"`
	Perishability string `json:"perishability"`
}

// StandItemForecastRow is the optional granular stand × item breakdown.
type StandItemForecastRow struct {
	Stand         string `json:"stand"`
	Item          string `json:"item"`
	TimeWindow    int    `json:"time_window"`
	ExpectedQty   int    `json:"expected_qty"`
	PrepQty       int    `json:"prep_qty"`
	Perishability string `json:"perishability"`
}

// Forecast is a scaled, adjusted, per-window demand plan for one game.
// It is ephemeral and owned by whichever component requested it.
type Forecast struct {
	StandForecast     []StandForecastRow     `json:"stand_forecast"`
	ItemForecast      []ItemForecastRow      `json:"item_forecast"`
	StandItemForecast []StandItemForecastRow `json:"stand_item_forecast,omitempty"`
	Archetype         string                 `json:"archetype"`
	Attendance        int                    `json:"attendance"`
	ScaleFactor       float64                `json:"scale_factor"`
	BeerFactor        float64                `json:"beer_factor"`
}

// StandTotal sums the expected quantity across all stands for one window.
func (f *Forecast) StandTotal(window int) int {
	total := 0
	for _, row := range f.StandForecast {
		if row.TimeWindow == window {
			total += row.ExpectedQty
		}
	}
	return total
}

// ItemTotal sums expected quantity across all item rows.
func (f *Forecast) ItemTotal() int {
	total := 0
	for _, row := range f.ItemForecast {
		total += row.ExpectedQty
	}
	return total
}
