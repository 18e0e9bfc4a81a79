// Package receipt turns uploaded receipt files into raw text and a detected total.
package receipt

import (
	"regexp"

	"github.com/parisedai/budgetai/internal/money"
)

// MaxTotal is the largest total considered plausible for a receipt.
var MaxTotal = money.MustParse("10000")

// totalPatterns are tried in order; the last match of the first pattern
// that yields a plausible amount wins.
var totalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)total[:\s]*\$?\s*(\d+\.\d{2})`),
	regexp.MustCompile(`(?im)\$?\s*(\d+\.\d{2})\s*$`),
	regexp.MustCompile(`(?im)amount[:\s]*\$?\s*(\d+\.\d{2})`),
	regexp.MustCompile(`(?im)grand\s*total[:\s]*\$?\s*(\d+\.\d{2})`),
	regexp.MustCompile(`(?im)balance[:\s]*\$?\s*(\d+\.\d{2})`),
	regexp.MustCompile(`(?im)\$?\s*(\d+\.\d{2})\s*(?:total|due|paid)`),
}

var anyAmount = regexp.MustCompile(`\$?\s*(\d+\.\d{2})`)

func plausible(a money.Amount) bool {
	return a > 0 && a <= MaxTotal
}

// ExtractTotal finds the receipt total in OCR text. When no labelled total
// is found it falls back to the largest plausible amount in the text.
func ExtractTotal(text string) (money.Amount, bool) {
	if text == "" {
		return 0, false
	}

	for _, re := range totalPatterns {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		amount, err := money.Parse(matches[len(matches)-1][1])
		if err == nil && plausible(amount) {
			return amount, true
		}
	}

	var best money.Amount
	for _, m := range anyAmount.FindAllStringSubmatch(text, -1) {
		amount, err := money.Parse(m[1])
		if err != nil || !plausible(amount) {
			continue
		}
		if amount > best {
			best = amount
		}
	}
	return best, best > 0
}
