package recipe

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxRating is the upper bound for recipe and log ratings. Zero means unrated.
const MaxRating = 5

// Recipe is a dish the owner knows how to cook.
type Recipe struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Servings     int       `json:"servings"`
	Instructions []string  `json:"instructions"`
	Tags         []string  `json:"tags"`
	Rating       int       `json:"rating"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasTag reports whether the recipe carries tag (already normalised).
func (r Recipe) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Ingredient is one line of a recipe's ingredient list. Quantity is for the
// recipe's own serving count.
type Ingredient struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	RecipeID  string          `json:"recipe_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	Position  int             `json:"position"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NormalizeTags trims, lowercases, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// SortIngredients orders ingredients by position, then id.
func SortIngredients(items []Ingredient) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}
