package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/parisedai/budgetai/internal/api"
	"github.com/parisedai/budgetai/internal/calculator"
	"github.com/parisedai/budgetai/internal/events"
	"github.com/parisedai/budgetai/internal/metrics"
	"github.com/parisedai/budgetai/internal/models"
	"github.com/parisedai/budgetai/internal/storage"
)

var _ api.SplitServiceHandler = (*SplitService)(nil)

// SplitService implements the Connect SplitService
type SplitService struct {
	store     storage.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
}

// NewSplitService creates a new SplitService with the given storage backend.
func NewSplitService(store storage.Store, publisher events.Publisher, m *metrics.Metrics) *SplitService {
	return &SplitService{store: store, publisher: publisher, metrics: m}
}

// Split divides the items' total evenly among people.
func (s *SplitService) Split(ctx context.Context, req *connect.Request[api.SplitRequest]) (*connect.Response[api.SplitResponse], error) {
	for i, item := range req.Msg.Items {
		slog.Debug("Processing item",
			"index", i+1,
			"name", item.Name,
			"amount", string(item.Amount),
		)
	}

	result, err := calculator.SplitExpenses(req.Msg.Items, req.Msg.People)
	if err != nil {
		var verr *calculator.ValidationError
		if errors.As(err, &verr) {
			s.metrics.SplitRejections.WithLabelValues(verr.Reason).Inc()
			return nil, connect.NewError(connect.CodeInvalidArgument, verr)
		}
		slog.Error("Split failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	shares := toShares(result.Allocation)
	if req.Msg.ReceiptID != "" {
		if err := s.store.UpdateReceiptSplit(ctx, req.Msg.ReceiptID, shares); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("receipt %s not found", req.Msg.ReceiptID))
			}
			slog.Error("Failed to store split", "receipt_id", req.Msg.ReceiptID, "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}

	s.metrics.SplitsCalculated.Inc()
	s.metrics.ParticipantsPerSplit.Observe(float64(len(result.Allocation)))
	for _, share := range result.Allocation {
		slog.Debug("Person split", "person", share.Participant, "amount", share.Amount.String())
	}

	events.PublishBestEffort(ctx, s.publisher, events.TopicSplitCalculated, events.SplitCalculated{
		ReceiptID: req.Msg.ReceiptID,
		Items:     toEventItems(result.Normalized.Items),
		Total:     result.Normalized.Total,
		Shares:    shares,
	})

	return connect.NewResponse(&api.SplitResponse{
		Split:     result.Split,
		Total:     result.Normalized.Total,
		ReceiptID: req.Msg.ReceiptID,
	}), nil
}

func toShares(a calculator.Allocation) []models.Share {
	shares := make([]models.Share, len(a))
	for i, s := range a {
		shares[i] = models.Share{Participant: s.Participant, Amount: s.Amount}
	}
	return shares
}

func toEventItems(items []calculator.Item) []events.Item {
	out := make([]events.Item, len(items))
	for i, it := range items {
		out[i] = events.Item{Label: it.Label, Amount: it.Amount}
	}
	return out
}

func toSplit(shares []models.Share) calculator.Split {
	alloc := make(calculator.Allocation, len(shares))
	for i, s := range shares {
		alloc[i] = calculator.Share{Participant: s.Participant, Amount: s.Amount}
	}
	return calculator.Assemble(alloc)
}
