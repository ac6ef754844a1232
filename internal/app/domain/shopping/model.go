package shopping

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one line of the shopping list. SourceRecipeID is set on items
// generated from logged recipes and empty on items added by hand.
type Item struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	Checked        bool            `json:"checked"`
	SourceRecipeID string          `json:"source_recipe_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Generated reports whether the item came from ingredient aggregation.
func (i Item) Generated() bool {
	return i.SourceRecipeID != ""
}

// Key identifies an item by name and unit, see Key.
func (i Item) Key() string {
	return Key(i.Name, i.Unit)
}
