package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assigned to accounts that do not choose one.
const DefaultCurrency = "USD"

// Account is a registered cook. Every other record is owned by exactly one
// account.
type Account struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	DisplayName   string          `json:"display_name"`
	PasswordHash  string          `json:"-"`
	Currency      string          `json:"currency"`
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
