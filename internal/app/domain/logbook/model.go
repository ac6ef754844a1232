// Package logbook models the daily meal log.
package logbook

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for log keys.
const DateLayout = "2006-01-02"

// Log records what the owner cooked and bought on one calendar day. There is
// at most one log per owner and date.
type Log struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Date       string    `json:"date"`
	RecipeIDs  []string  `json:"recipe_ids"`
	ProductIDs []string  `json:"product_ids"`
	Rating     int       `json:"rating"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParseDate validates a YYYY-MM-DD date and returns it in canonical form.
func ParseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("date %q must be YYYY-MM-DD", raw)
	}
	return t.Format(DateLayout), nil
}

// FormatDate renders t as a log date in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
