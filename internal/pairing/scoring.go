package pairing

import (
	"math"
	"strings"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

// candidate bundles a wine with its most recently known vintage for scoring.
type candidate struct {
	wine    *domain.Wine
	vintage *domain.Vintage
}

func scoreStyleMatch(dish domain.Dish, w *domain.Wine) float64 {
	intensity := dish.Intensity
	style := strings.ToLower(w.Style)
	bold := w.WineType == domain.WineTypeRed || w.WineType == domain.WineTypeFortified ||
		strings.Contains(style, "full") || strings.Contains(style, "bold") || strings.Contains(style, "robust")
	light := w.WineType == domain.WineTypeWhite || w.WineType == domain.WineTypeSparkling || w.WineType == domain.WineTypeRose ||
		strings.Contains(style, "light") || strings.Contains(style, "delicate") || strings.Contains(style, "crisp")

	switch intensity {
	case "bold":
		if bold {
			return 0.9
		}
		if light {
			return 0.3
		}
		return 0.6
	case "light":
		if light {
			return 0.9
		}
		if bold {
			return 0.3
		}
		return 0.6
	case "rich":
		if bold {
			return 0.8
		}
		return 0.5
	default:
		return 0.5
	}
}

func scoreFlavorHarmony(dish domain.Dish, w *domain.Wine) float64 {
	if len(dish.DominantFlavors) == 0 {
		return 0.5
	}
	notes := strings.ToLower(w.TastingNotes + " " + strings.Join(w.GrapeVarieties, " "))
	matches := 0
	for _, flavor := range dish.DominantFlavors {
		if strings.Contains(notes, flavor) {
			matches++
		}
	}
	score := float64(matches) / float64(len(dish.DominantFlavors))
	// a wine with zero detectable overlap still earns a modest baseline,
	// since tasting notes rarely enumerate every complementary flavor.
	return 0.3 + 0.7*score
}

func scoreTextureBalance(dish domain.Dish, w *domain.Wine) float64 {
	if dish.Texture == "" {
		return 0.5
	}
	style := strings.ToLower(w.Style)
	switch dish.Texture {
	case "creamy", "silky":
		if strings.Contains(style, "crisp") || strings.Contains(style, "acid") {
			return 0.85
		}
	case "crispy", "crunchy":
		if strings.Contains(style, "light") || w.WineType == domain.WineTypeSparkling {
			return 0.85
		}
	case "tender", "chewy":
		if strings.Contains(style, "tannin") || w.WineType == domain.WineTypeRed {
			return 0.8
		}
	}
	return 0.5
}

func scoreRegionalTradition(dish domain.Dish, w *domain.Wine) float64 {
	if dish.Cuisine == "" {
		return 0.5
	}
	cuisine := strings.ToLower(dish.Cuisine)
	region := strings.ToLower(w.Region)
	country := strings.ToLower(w.Country)

	pairs := map[string][]string{
		"italian": {"tuscany", "piedmont", "italy"},
		"french":  {"bordeaux", "burgundy", "rhone", "champagne", "france"},
		"spanish": {"rioja", "spain"},
		"greek":   {"greece"},
	}
	for _, token := range pairs[cuisine] {
		if strings.Contains(region, token) || strings.Contains(country, token) {
			return 0.9
		}
	}
	return 0.4
}

func scoreSeasonalAppropriateness(dish domain.Dish, w *domain.Wine) float64 {
	season := dish.Season
	if season == "" {
		return 0.5
	}
	warmSeason := season == "summer" || season == "spring"
	coolSeason := season == "winter" || season == "autumn"
	lightWine := w.WineType == domain.WineTypeWhite || w.WineType == domain.WineTypeSparkling || w.WineType == domain.WineTypeRose
	heavyWine := w.WineType == domain.WineTypeRed || w.WineType == domain.WineTypeFortified || w.WineType == domain.WineTypeDessert

	if warmSeason && lightWine {
		return 0.85
	}
	if coolSeason && heavyWine {
		return 0.85
	}
	if warmSeason && heavyWine || coolSeason && lightWine {
		return 0.35
	}
	return 0.5
}

func computeSubScores(dish domain.Dish, c candidate) domain.SubScores {
	return domain.SubScores{
		StyleMatch:              scoreStyleMatch(dish, c.wine),
		FlavorHarmony:           scoreFlavorHarmony(dish, c.wine),
		TextureBalance:          scoreTextureBalance(dish, c.wine),
		RegionalTradition:       scoreRegionalTradition(dish, c.wine),
		SeasonalAppropriateness: scoreSeasonalAppropriateness(dish, c.wine),
	}
}

func weightedTotal(s domain.SubScores, w domain.PairingWeights) float64 {
	return s.StyleMatch*w.StyleMatch +
		s.FlavorHarmony*w.FlavorHarmony +
		s.TextureBalance*w.TextureBalance +
		s.RegionalTradition*w.RegionalTradition +
		s.SeasonalAppropriateness*w.SeasonalAppropriateness
}

// confidence is 1 minus the population variance of the five sub-scores, clipped
// to [0, 1]: a candidate that scores uniformly across every factor is a more
// confident recommendation than one with wildly divergent factor scores.
func confidence(s domain.SubScores) float64 {
	values := []float64{s.StyleMatch, s.FlavorHarmony, s.TextureBalance, s.RegionalTradition, s.SeasonalAppropriateness}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	c := 1 - variance
	return math.Max(0, math.Min(1, c))
}

func passesPreferenceFilters(w *domain.Wine, prefs domain.GuestPreferences) bool {
	for _, avoided := range prefs.AvoidedTypes {
		if w.WineType == avoided {
			return false
		}
	}
	if len(prefs.PreferredRegions) > 0 {
		match := false
		for _, r := range prefs.PreferredRegions {
			if strings.EqualFold(r, w.Region) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}
