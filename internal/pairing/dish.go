package pairing

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

var (
	cuisineKeywords = map[string]string{
		"italian": "Italian", "french": "French", "japanese": "Japanese",
		"thai": "Thai", "indian": "Indian", "mexican": "Mexican",
		"chinese": "Chinese", "spanish": "Spanish", "greek": "Greek",
	}
	intensityKeywords = map[string]string{
		"light": "light", "delicate": "light", "mild": "light",
		"rich": "rich", "hearty": "rich", "bold": "bold", "spicy": "bold",
		"robust": "bold",
	}
	textureKeywords = map[string]string{
		"creamy": "creamy", "crispy": "crispy", "tender": "tender",
		"chewy": "chewy", "silky": "silky", "crunchy": "crunchy",
	}
	seasonKeywords = map[string]string{
		"summer": "summer", "winter": "winter", "spring": "spring", "autumn": "autumn", "fall": "autumn",
	}
	flavorKeywords = []string{
		"garlic", "butter", "lemon", "herb", "pepper", "smoke", "smoky",
		"citrus", "chili", "tomato", "mushroom", "truffle", "cream",
		"caramel", "chocolate", "berry",
	}
)

// ParseDish decodes a pairing request's raw dish field, which may be a JSON
// string (free text) or a structured object, into a normalized domain.Dish.
func ParseDish(raw json.RawMessage) (domain.Dish, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return parseFreeText(text), nil
	}

	var dish domain.Dish
	if err := json.Unmarshal(raw, &dish); err != nil {
		return domain.Dish{}, err
	}
	return normalizeDish(dish), nil
}

func normalizeDish(d domain.Dish) domain.Dish {
	d.Name = strings.TrimSpace(d.Name)
	d.Cuisine = strings.TrimSpace(d.Cuisine)
	d.Preparation = strings.TrimSpace(d.Preparation)
	d.Intensity = strings.ToLower(strings.TrimSpace(d.Intensity))
	d.Texture = strings.ToLower(strings.TrimSpace(d.Texture))
	d.Season = strings.ToLower(strings.TrimSpace(d.Season))
	for i, f := range d.DominantFlavors {
		d.DominantFlavors[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return d
}

// parseFreeText heuristically extracts a structured Dish from free text.
// The heuristic is deterministic: it always yields the same Dish for the
// same input string.
func parseFreeText(text string) domain.Dish {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	dish := domain.Dish{Name: trimmed}

	sortedKeys := func(m map[string]string) []string {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}

	for _, kw := range sortedKeys(cuisineKeywords) {
		if strings.Contains(lower, kw) {
			dish.Cuisine = cuisineKeywords[kw]
			break
		}
	}
	for _, kw := range sortedKeys(intensityKeywords) {
		if strings.Contains(lower, kw) {
			dish.Intensity = intensityKeywords[kw]
			break
		}
	}
	for _, kw := range sortedKeys(textureKeywords) {
		if strings.Contains(lower, kw) {
			dish.Texture = textureKeywords[kw]
			break
		}
	}
	for _, kw := range sortedKeys(seasonKeywords) {
		if strings.Contains(lower, kw) {
			dish.Season = seasonKeywords[kw]
			break
		}
	}
	for _, flavor := range flavorKeywords {
		if strings.Contains(lower, flavor) {
			dish.DominantFlavors = append(dish.DominantFlavors, flavor)
		}
	}

	return dish
}
