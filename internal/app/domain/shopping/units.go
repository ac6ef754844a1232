package shopping

import (
	"strings"

	"github.com/shopspring/decimal"
)

type unitRule struct {
	canonical string
	factor    decimal.Decimal
}

func rule(canonical string, factor int64) unitRule {
	return unitRule{canonical: canonical, factor: decimal.NewFromInt(factor)}
}

// units maps known spellings to a canonical unit and the factor that
// converts one of them into the canonical unit.
var units = map[string]unitRule{
	"":            rule("", 1),
	"pc":          rule("", 1),
	"pcs":         rule("", 1),
	"piece":       rule("", 1),
	"pieces":      rule("", 1),
	"g":           rule("g", 1),
	"gr":          rule("g", 1),
	"gram":        rule("g", 1),
	"grams":       rule("g", 1),
	"kg":          rule("g", 1000),
	"kgs":         rule("g", 1000),
	"kilogram":    rule("g", 1000),
	"kilograms":   rule("g", 1000),
	"ml":          rule("ml", 1),
	"milliliter":  rule("ml", 1),
	"milliliters": rule("ml", 1),
	"millilitre":  rule("ml", 1),
	"millilitres": rule("ml", 1),
	"cl":          rule("ml", 10),
	"dl":          rule("ml", 100),
	"l":           rule("ml", 1000),
	"liter":       rule("ml", 1000),
	"liters":      rule("ml", 1000),
	"litre":       rule("ml", 1000),
	"litres":      rule("ml", 1000),
	"tsp":         rule("tsp", 1),
	"teaspoon":    rule("tsp", 1),
	"teaspoons":   rule("tsp", 1),
	"tbsp":        rule("tsp", 3),
	"tablespoon":  rule("tsp", 3),
	"tablespoons": rule("tsp", 3),
	"cup":         rule("cup", 1),
	"cups":        rule("cup", 1),
	"oz":          rule("oz", 1),
	"ounce":       rule("oz", 1),
	"ounces":      rule("oz", 1),
	"lb":          rule("oz", 16),
	"lbs":         rule("oz", 16),
	"pound":       rule("oz", 16),
	"pounds":      rule("oz", 16),
}

func lookupUnit(unit string) (string, unitRule, bool) {
	trimmed := strings.TrimSpace(unit)
	r, ok := units[strings.TrimSuffix(strings.ToLower(trimmed), ".")]
	return trimmed, r, ok
}

// Canonical converts quantity in unit to the canonical unit. Unknown units
// come back verbatim (trimmed) with the quantity untouched.
func Canonical(quantity decimal.Decimal, unit string) (decimal.Decimal, string) {
	trimmed, r, ok := lookupUnit(unit)
	if !ok {
		return quantity, trimmed
	}
	return quantity.Mul(r.factor), r.canonical
}

// UnitKey is the form of unit used in keys. Units are case-folded, and known
// abbreviations lose a trailing dot.
func UnitKey(unit string) string {
	trimmed, _, ok := lookupUnit(unit)
	folded := strings.ToLower(trimmed)
	if ok {
		return strings.TrimSuffix(folded, ".")
	}
	return folded
}

// Key identifies a list entry by case-folded name and unit key.
func Key(name, unit string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + UnitKey(unit)
}
