package models

import "github.com/parisedai/budgetai/internal/money"

// Receipt represents an uploaded receipt.
type Receipt struct {
	// ID is the unique identifier for the receipt (UUID format).
	ID string

	// Title is the human-readable name for the receipt.
	// Auto-generated from the upload date when not provided.
	Title string

	// Total is the amount detected on the receipt. Zero when OCR found no total.
	Total money.Amount

	// RawText is the text extracted by OCR.
	RawText string

	// Split holds the shares once the receipt has been split, in participant order.
	// Empty until a split is recorded against the receipt.
	Split []Share

	// CreatedAt is the Unix timestamp when the receipt was uploaded.
	CreatedAt int64
}

// Share is one participant's portion of a split.
type Share struct {
	Participant string       `json:"participant"`
	Amount      money.Amount `json:"amount"`
}
