package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/parisedai/budgetai/internal/api"
	"github.com/parisedai/budgetai/internal/budget"
	"github.com/parisedai/budgetai/internal/metrics"
)

var _ api.BudgetServiceHandler = (*BudgetService)(nil)

// BudgetService generates monthly budget plans.
type BudgetService struct {
	planner budget.Planner
	metrics *metrics.Metrics
}

// NewBudgetService creates a BudgetService. Mock or live mode is a property
// of the planner and is fixed for the lifetime of the service.
func NewBudgetService(planner budget.Planner, m *metrics.Metrics) *BudgetService {
	return &BudgetService{planner: planner, metrics: m}
}

func (s *BudgetService) mode() string {
	if s.planner.Mock() {
		return "mock"
	}
	return "openai"
}

// GenerateBudget validates the inputs and asks the planner for a plan.
func (s *BudgetService) GenerateBudget(ctx context.Context, req *connect.Request[api.GenerateBudgetRequest]) (*connect.Response[api.GenerateBudgetResponse], error) {
	in, err := budget.ParseInput(req.Msg.Income, req.Msg.City, req.Msg.FinancialGoal)
	if err != nil {
		s.metrics.BudgetPlans.WithLabelValues(s.mode(), "invalid").Inc()
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	plan, err := s.planner.Plan(ctx, in)
	if err != nil {
		s.metrics.BudgetPlans.WithLabelValues(s.mode(), "failed").Inc()
		slog.Error("Error generating budget", "mode", s.mode(), "error", err)
		switch {
		case errors.Is(err, budget.ErrQuotaExceeded):
			return nil, connect.NewError(connect.CodeResourceExhausted, errors.New(budget.MsgQuotaExceeded))
		case errors.Is(err, budget.ErrInvalidAPIKey):
			return nil, connect.NewError(connect.CodeUnauthenticated, errors.New(budget.MsgInvalidAPIKey))
		}
		return nil, connect.NewError(connect.CodeInternal, errors.New(budget.MsgGenericFailure))
	}

	s.metrics.BudgetPlans.WithLabelValues(s.mode(), "ok").Inc()
	return connect.NewResponse(&api.GenerateBudgetResponse{
		Success:    true,
		BudgetPlan: plan,
		UserInputs: api.UserInputs{
			Income:        json.Number(in.Income.Decimal().String()),
			City:          in.City,
			FinancialGoal: in.FinancialGoal,
		},
		MockMode: s.planner.Mock(),
	}), nil
}
