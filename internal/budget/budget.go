// Package budget generates monthly budget plans from income, city and goal.
//
// Two planners exist: MockPlanner renders a fixed percentage template and
// needs no network access, OpenAIPlanner asks a chat model for the plan.
// Which one runs is decided once, when the planner is constructed.
package budget

import (
	"context"
	"strings"

	"github.com/parisedai/budgetai/internal/money"
)

// Input validation messages.
const (
	MsgMissingFields  = "Please provide income, city, and financial goal"
	MsgInvalidIncome  = "Income must be a positive number"
	MsgGenericFailure = "Failed to generate budget plan. Please try again."
	MsgQuotaExceeded  = "OpenAI API quota exceeded. Please try again later."
	MsgInvalidAPIKey  = "Invalid OpenAI API key. Please check your configuration."
)

// InputError reports a budget request that cannot be planned.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// Input is a validated budget request.
type Input struct {
	Income        money.Amount
	City          string
	FinancialGoal string
}

// ParseInput validates raw request fields.
func ParseInput(income money.RawAmount, city, goal string) (Input, error) {
	city = strings.TrimSpace(city)
	goal = strings.TrimSpace(goal)
	if strings.TrimSpace(string(income)) == "" || city == "" || goal == "" {
		return Input{}, &InputError{Message: MsgMissingFields}
	}

	amount, err := money.Parse(string(income))
	if err != nil || amount <= 0 {
		return Input{}, &InputError{Message: MsgInvalidIncome}
	}
	return Input{Income: amount, City: city, FinancialGoal: goal}, nil
}

// Planner produces a markdown budget plan.
type Planner interface {
	Plan(ctx context.Context, in Input) (string, error)
	// Mock reports whether plans are generated locally from a template.
	Mock() bool
}

// NewPlanner returns an OpenAIPlanner when apiKey is set and a MockPlanner otherwise.
func NewPlanner(apiKey string) Planner {
	if apiKey == "" {
		return MockPlanner{}
	}
	return NewOpenAIPlanner(apiKey)
}
