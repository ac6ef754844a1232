package budget

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/souschef/internal/app/domain/logbook"
	"github.com/R3E-Network/souschef/internal/app/domain/receipt"
)

var (
	amountTail = regexp.MustCompile(`^(.*?\S)\s+[$€£]?\s*(-?\d+[.,]\d{2})\s*[A-Z*]?$`)
	amountAny  = regexp.MustCompile(`[$€£]?\s*(-?\d+[.,]\d{2})`)
	isoDate    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayFirst   = regexp.MustCompile(`\b(\d{2})[./](\d{2})[./](\d{4})\b`)
	codeToken  = regexp.MustCompile(`\b(USD|EUR|GBP|CHF|CAD|AUD|JPY|SEK|NOK|DKK|PLN)\b`)
)

// summaryWords mark receipt rows that are not purchased items.
var summaryWords = []string{"total", "subtotal", "tax", "vat", "change", "cash", "card", "balance", "tip"}

var symbols = map[string]string{"$": "USD", "€": "EUR", "£": "GBP"}

// ParseText reads a receipt out of plain OCR text. The first line is taken
// as the store, the first recognisable date as the purchase date and the
// last TOTAL row as the total. Rows ending in an amount become lines. When
// no total row is present the lines are summed.
func ParseText(text string) receipt.Receipt {
	var out receipt.Receipt
	out.RawText = strings.TrimSpace(text)
	out.Lines = []receipt.Line{}

	var total *decimal.Decimal
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if out.Store == "" {
			out.Store = line
			continue
		}
		if out.PurchasedOn == "" {
			out.PurchasedOn = findDate(line)
		}
		if out.Currency == "" {
			out.Currency = findCurrency(line)
		}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "total") && !strings.Contains(lower, "subtotal") {
			if m := amountAny.FindAllStringSubmatch(line, -1); len(m) > 0 {
				if amt, ok := parseAmount(m[len(m)-1][1]); ok {
					total = &amt
				}
			}
			continue
		}
		if isSummary(lower) {
			continue
		}
		m := amountTail.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		amt, ok := parseAmount(m[2])
		if !ok {
			continue
		}
		out.Lines = append(out.Lines, receipt.Line{Description: strings.TrimSpace(m[1]), Amount: amt})
	}

	if total != nil {
		out.Total = *total
	} else {
		out.Total = out.LinesTotal()
	}
	return out
}

func isSummary(lower string) bool {
	for _, w := range summaryWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func findDate(line string) string {
	if m := isoDate.FindStringSubmatch(line); m != nil {
		if d, err := logbook.ParseDate(m[0]); err == nil {
			return d
		}
	}
	if m := dayFirst.FindStringSubmatch(line); m != nil {
		if t, err := time.Parse("02.01.2006", m[1]+"."+m[2]+"."+m[3]); err == nil {
			return logbook.FormatDate(t)
		}
	}
	return ""
}

func findCurrency(line string) string {
	if m := codeToken.FindString(line); m != "" {
		return m
	}
	for sym, code := range symbols {
		if strings.Contains(line, sym) {
			return code
		}
	}
	return ""
}
