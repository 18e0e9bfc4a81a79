// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/parisedai/budgetai/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for receipt storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateReceipt persists a new receipt.
	// The ID, Title and CreatedAt fields are populated by the store when empty.
	CreateReceipt(ctx context.Context, receipt *models.Receipt) error

	// GetReceipt retrieves a receipt by its ID, including its split.
	// Returns ErrNotFound if the receipt does not exist.
	GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error)

	// ListReceipts returns all receipts, newest first.
	ListReceipts(ctx context.Context) ([]*models.Receipt, error)

	// UpdateReceiptSplit replaces the split recorded for a receipt.
	// Returns ErrNotFound if the receipt does not exist.
	UpdateReceiptSplit(ctx context.Context, receiptID string, split []models.Share) error

	// Close releases any resources held by the store.
	Close() error
}
