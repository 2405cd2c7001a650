// Venue-specific domain tables: stands, item perishability, category
// normalization, opponent metadata, archetype thresholds. These describe one
// fixed arena and its menu, so they live as Go tables rather than YAML knobs.
package config

// Venue location (Save on Foods Memorial Centre, Victoria BC), used by the
// external weather collaborator.
const (
	VenueLat = 48.4284
	VenueLon = -123.3656
)

// Stands lists the concession stands tracked by the forecaster.
var Stands = []string{
	"SOFMC Island Canteen",
	"SOFMC ReMax Fan Deck",
	"SOFMC TacoTacoTaco",
	"SOFMC Portable Stations",
	"SOFMC Island Slice",
}

// StandShort maps full stand identifiers to display names.
var StandShort = map[string]string{
	"SOFMC Island Canteen":    "Island Canteen",
	"SOFMC ReMax Fan Deck":    "ReMax Fan Deck",
	"SOFMC TacoTacoTaco":      "TacoTacoTaco",
	"SOFMC Portable Stations": "Portable Stations",
	"SOFMC Island Slice":      "Island Slice",
}

// ShortStand returns the display name for a stand, falling back to the raw name.
func ShortStand(stand string) string {
	if s, ok := StandShort[stand]; ok {
		return s
	}
	return stand
}

// CategoryMap normalizes raw POS categories, which vary across exports,
// to a consistent set.
var CategoryMap = map[string]string{
	"Beer":                  "Beer",
	"Wine, Cider & Coolers": "Wine/Cider",
	"Liquor":                "Liquor",
	"Food":                  "Food",
	"Snack":                 "Snacks",
	"Snacks":                "Snacks",
	"Sweets":                "Sweets",
	"NA Bev":                "NA Bev",
	"NA Bev PST Exempt":     "NA Bev",
	"Extras":                "Extras",
}

// SuperCategories rolls normalized categories up to coarse groups.
var SuperCategories = map[string]string{
	"Beer":       "Alcohol",
	"Wine/Cider": "Alcohol",
	"Liquor":     "Alcohol",
	"Food":       "Food",
	"Snacks":     "Food",
	"Sweets":     "Food",
	"NA Bev":     "Beverage",
	"Extras":     "Other",
}

// Perishability tier names
const (
	TierShelfStable = "shelf_stable"
	TierMediumHold  = "medium_hold"
	TierShortLife   = "short_life"
)

// perishabilityTiers groups menu items by how long they hold after prep.
// Shelf-stable items pre-stage at T-2hrs; medium-hold batches at T-1hr with
// intermission refreshes; short-life items cook continuously.
var perishabilityTiers = map[string][]string{
	TierShelfStable: {
		"Candy", "Chips", "Gummies", "Cookies & Brownies", "Bottle Pop",
		"Water", "Cans of Beer", "Cider & Coolers",
		"Wine by the Glass SOFMC",
	},
	TierMediumHold: {
		"Popcorn", "Hot Dog", "Dogs", "Pretzel", "Churro",
		"Cotton Candy", "Hot Drinks", "Non-Alcoholic Beverages",
		"Draught Beer", "Coffee & Baileys", "Tequila Slushy",
		"Virgin Slushy",
	},
	TierShortLife: {
		"Fries", "Sweet Potato Fries", "Tacos", "Pizza Slice",
		"Chicken Tenders", "Burgers", "Crispy Chicken Burger",
		"Panini", "Jalapeno Poppers", "Paletas",
	},
}

// ItemPerishability maps each known item to its tier.
var ItemPerishability = map[string]string{}

func init() {
	for tier, items := range perishabilityTiers {
		for _, item := range items {
			ItemPerishability[item] = tier
		}
	}
}

// PerishabilityTier returns an item's tier, defaulting unknown items to
// medium-hold.
func PerishabilityTier(item string) string {
	if tier, ok := ItemPerishability[item]; ok {
		return tier
	}
	return TierMediumHold
}

// Items affected by the temperature adjustment: warm weather raises beer
// demand and suppresses hot drinks, proportionally inverse.
var (
	BeerItems     = map[string]bool{"Draught Beer": true, "Cans of Beer": true}
	HotDrinkItems = map[string]bool{"Hot Drinks": true, "Coffee & Baileys": true}
	HotDogItems   = map[string]bool{"Hot Dog": true, "Dogs": true}
)

// Crowd archetype thresholds on beer share of total quantity.
// beer_crowd is the top quartile of historical games, family the bottom.
const (
	BeerCrowdShare = 0.25 // beer share >= 25% -> beer_crowd
	FamilyShare    = 0.19 // beer share < 19% -> family; between is mixed
)

// OpponentDistance gives road distance from Victoria in km per WHL opponent.
var OpponentDistance = map[string]float64{
	"Tri-City": 520, "TriCity": 520,
	"Wenatchee":     450,
	"Prince Albert": 2100,
	"Moose Jaw":     2000,
	"Saskatoon":     2100,
	"Kamloops":      600,
	"Seattle":       180,
	"Regina":        2200,
	"Kelowna":       480,
	"Vancouver":     110,
	"Prince George": 900,
	"Everett":       200,
	"Brandon":       2300,
	"SWC":           0,
	"Portland":      500,
	"Spokane":       580,
	"Penticton":     440,
	"Medicine Hat":  1500,
	"Edmonton":      1150,
	"Lethbridge":    1400,
	"Red Deer":      1250,
	"Calgary":       1100,
}

// OpponentDivision maps opponents to their WHL division grouping.
var OpponentDivision = map[string]string{
	"Tri-City": "US", "TriCity": "US",
	"Wenatchee":     "US",
	"Seattle":       "US",
	"Everett":       "US",
	"Portland":      "US",
	"Spokane":       "US",
	"Kamloops":      "BC",
	"Kelowna":       "BC",
	"Vancouver":     "BC",
	"Prince George": "BC",
	"Penticton":     "BC",
	"Prince Albert": "East",
	"Moose Jaw":     "East",
	"Saskatoon":     "East",
	"Regina":        "East",
	"Brandon":       "East",
	"SWC":           "East",
	"Medicine Hat":  "Central",
	"Edmonton":      "Central",
	"Lethbridge":    "Central",
	"Red Deer":      "Central",
	"Calgary":       "Central",
}

// HolidayDates are local statutory/observed holidays flagged on games.
var HolidayDates = map[string]bool{
	"2024-12-31": true,
	"2025-01-01": true,
	"2025-02-17": true,
	"2025-03-17": true,
	"2026-01-01": true,
	"2026-02-16": true,
}
