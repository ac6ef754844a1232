package receipt

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is a purchase read from a scanned till receipt or entered by hand.
// PurchasedOn is a YYYY-MM-DD date.
type Receipt struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Store       string          `json:"store"`
	PurchasedOn string          `json:"purchased_on"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Lines       []Line          `json:"lines"`
	ImagePath   string          `json:"image_path,omitempty"`
	RawText     string          `json:"raw_text,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Line is a single priced row on a receipt.
type Line struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// LinesTotal sums the line amounts.
func (r Receipt) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Lines {
		total = total.Add(line.Amount)
	}
	return total
}
