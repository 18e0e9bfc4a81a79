// Package events defines the domain events emitted by BudgetAI and the
// publisher abstraction used to ship them.
package events

import (
	"context"
	"log/slog"

	"github.com/parisedai/budgetai/internal/models"
	"github.com/parisedai/budgetai/internal/money"
)

// Topics.
const (
	TopicReceiptUploaded = "receipt.uploaded"
	TopicSplitCalculated = "split.calculated"
)

// Publisher sends an event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

// ReceiptUploaded is emitted after a receipt has been processed and stored.
type ReceiptUploaded struct {
	ReceiptID  string       `json:"receipt_id"`
	Total      money.Amount `json:"total_amount"`
	TotalFound bool         `json:"total_found"`
	UploadedAt int64        `json:"uploaded_at"`
}

// Item is one labelled line of a split.
type Item struct {
	Label  string       `json:"label"`
	Amount money.Amount `json:"amount"`
}

// SplitCalculated is emitted for every successful split.
type SplitCalculated struct {
	ReceiptID string         `json:"receipt_id,omitempty"`
	Items     []Item         `json:"items"`
	Total     money.Amount   `json:"total_amount"`
	Shares    []models.Share `json:"shares"`
}

// PublishBestEffort publishes an event and logs failures instead of returning them.
func PublishBestEffort(ctx context.Context, p Publisher, topic string, event any) {
	if err := p.Publish(ctx, topic, event); err != nil {
		slog.Warn("Failed to publish event", "topic", topic, "error", err)
	}
}
