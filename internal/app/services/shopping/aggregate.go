package shopping

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	domain "github.com/R3E-Network/souschef/internal/app/domain/shopping"
	"github.com/R3E-Network/souschef/internal/app/services/ingredients"
)

// Need is the total amount of one ingredient across the selected days.
type Need struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	RecipeIDs []string        `json:"recipe_ids"`
}

// Key matches the shopping item key for the same name and unit.
func (n Need) Key() string {
	return domain.Key(n.Name, n.Unit)
}

// Canonical converts quantity in unit to the canonical unit. Unknown units
// come back verbatim (trimmed) with the quantity untouched; Aggregate merges
// them only with the same unit in another case, keeping the first spelling.
func Canonical(quantity decimal.Decimal, unit string) (decimal.Decimal, string) {
	return domain.Canonical(quantity, unit)
}

// Aggregate totals the ingredients of every recipe referenced by logs. A
// recipe logged on several days counts once per day. With servings > 0 each
// recipe is scaled from its own serving count to servings. Unknown recipe
// ids are skipped. The result is ordered by name, then unit.
func Aggregate(logs []logbook.Log, recipes map[string]recipe.Recipe, items map[string][]recipe.Ingredient, servings int) []Need {
	type acc struct {
		need    Need
		sources map[string]bool
	}
	byKey := make(map[string]*acc)

	for _, l := range logs {
		for _, recipeID := range l.RecipeIDs {
			r, ok := recipes[recipeID]
			if !ok {
				continue
			}
			for _, ing := range items[recipeID] {
				qty := ingredients.Scale(ing.Quantity, r.Servings, servings)
				qty, unit := Canonical(qty, ing.Unit)
				name := strings.ToLower(strings.TrimSpace(ing.Name))
				if name == "" {
					continue
				}
				k := domain.Key(name, unit)
				a, ok := byKey[k]
				if !ok {
					a = &acc{need: Need{Name: name, Unit: unit, Quantity: decimal.Zero}, sources: map[string]bool{}}
					byKey[k] = a
				}
				a.need.Quantity = a.need.Quantity.Add(qty)
				a.sources[recipeID] = true
			}
		}
	}

	out := make([]Need, 0, len(byKey))
	for _, a := range byKey {
		ids := make([]string, 0, len(a.sources))
		for id := range a.sources {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		a.need.RecipeIDs = ids
		out = append(out, a.need)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Unit < out[j].Unit
	})
	return out
}
