package budget

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Housing share in percent; expensive cities get a higher allocation.
const (
	housingPercent          = 30
	housingPercentExpensive = 35
)

var expensiveCities = []string{"new york", "san francisco"}

// MockPlanner renders a fixed-percentage plan without calling any service.
type MockPlanner struct{}

// Mock implements Planner.
func (MockPlanner) Mock() bool { return true }

// Plan implements Planner.
func (MockPlanner) Plan(_ context.Context, in Input) (string, error) {
	var b strings.Builder
	if err := planTemplate.Execute(&b, newBreakdown(in)); err != nil {
		return "", fmt.Errorf("render budget plan: %w", err)
	}
	return b.String(), nil
}

type breakdown struct {
	City, Goal     string
	Income         decimal.Decimal
	HousingPercent int64

	Housing, Utilities, Groceries, Transportation int64
	Savings, Emergency, Entertainment             int64
	Remaining                                     decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// percentOf returns pct% of income rounded to whole units, half-up.
func percentOf(income decimal.Decimal, pct int64) int64 {
	return income.Mul(decimal.NewFromInt(pct)).Div(hundred).Round(0).IntPart()
}

func newBreakdown(in Input) breakdown {
	income := in.Income.Decimal()

	housingPct := int64(housingPercent)
	city := strings.ToLower(in.City)
	for _, c := range expensiveCities {
		if strings.Contains(city, c) {
			housingPct = housingPercentExpensive
			break
		}
	}

	b := breakdown{
		City:           in.City,
		Goal:           in.FinancialGoal,
		Income:         income,
		HousingPercent: housingPct,
		Housing:        percentOf(income, housingPct),
		Utilities:      percentOf(income, 8),
		Groceries:      percentOf(income, 12),
		Transportation: percentOf(income, 10),
		Savings:        percentOf(income, 20),
		Emergency:      percentOf(income, 5),
		Entertainment:  percentOf(income, 8),
	}
	spent := b.Essentials() + b.Savings + b.Emergency + b.Entertainment
	b.Remaining = income.Sub(decimal.NewFromInt(spent))
	return b
}

// Essentials is housing, utilities, groceries and transportation combined.
func (b breakdown) Essentials() int64 {
	return b.Housing + b.Utilities + b.Groceries + b.Transportation
}

// share returns v as a whole percentage of income.
func (b breakdown) share(v decimal.Decimal) int64 {
	if b.Income.IsZero() {
		return 0
	}
	return v.Div(b.Income).Mul(hundred).Round(0).IntPart()
}

var printer = message.NewPrinter(language.AmericanEnglish)

// dollars formats a value with thousands separators, keeping cents only when present.
func dollars(v any) string {
	switch d := v.(type) {
	case int64:
		return printer.Sprintf("%d", d)
	case decimal.Decimal:
		whole := d.Truncate(0)
		out := printer.Sprintf("%d", whole.IntPart())
		if !d.IsInteger() {
			cents := d.Sub(whole).Abs().Shift(2).Round(0).IntPart()
			out += fmt.Sprintf(".%02d", cents)
		}
		return out
	}
	return fmt.Sprint(v)
}

var planTemplate = template.Must(template.New("plan").Funcs(template.FuncMap{
	"dollars": dollars,
	"div":     func(a, b int64) int64 { return decimal.NewFromInt(a).Div(decimal.NewFromInt(b)).Round(0).IntPart() },
	"mul":     func(a, b int64) int64 { return a * b },
	"pct": func(b breakdown, v any) int64 {
		switch d := v.(type) {
		case int64:
			return b.share(decimal.NewFromInt(d))
		case decimal.Decimal:
			return b.share(d)
		}
		return 0
	},
}).Parse(`# Monthly Budget Plan for {{.City}}

**Monthly Income:** ${{dollars .Income}}

## Essential Expenses ({{pct . .Essentials}}% of income)

**Housing & Rent:** ${{dollars .Housing}} ({{.HousingPercent}}%)
- This allocation is adjusted for {{.City}}'s cost of living

**Utilities:** ${{dollars .Utilities}} (8%)
- Electricity, gas, water, internet, phone

**Groceries:** ${{dollars .Groceries}} (12%)
- Weekly grocery budget: ${{div .Groceries 4}}

**Transportation:** ${{dollars .Transportation}} (10%)
- Gas, car payment, insurance, or public transit

## Savings & Goals (25% of income)

**Goal-Specific Savings:** ${{dollars .Savings}} (20%)
- Dedicated to: {{.Goal}}
- Annual savings toward goal: ${{dollars (mul .Savings 12)}}

**Emergency Fund:** ${{dollars .Emergency}} (5%)
- Build to 3-6 months of expenses

## Discretionary Spending

**Entertainment & Personal:** ${{dollars .Entertainment}} (8%)
- Dining out, subscriptions, hobbies

**Flexible/Buffer:** ${{dollars .Remaining}} ({{pct . .Remaining}}%)
- Additional savings, debt payments, or miscellaneous expenses

## Recommendations for {{.City}}

1. **Housing:** Your housing cost of ${{dollars .Housing}} is appropriate for {{.City}}
2. **Goal Progress:** At ${{dollars .Savings}}/month, you'll save ${{dollars (mul .Savings 12)}} annually toward "{{.Goal}}"
3. **Emergency Fund:** Aim to build ${{dollars (mul .Essentials 6)}} for 6 months of expenses

*Note: This is a demo budget plan. For real financial advice, provide your OpenAI API key.*`))
