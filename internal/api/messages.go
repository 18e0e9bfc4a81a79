// Package api defines the BudgetAI RPC surface: request/response messages,
// procedure names, and Connect handler and client constructors.
//
// Messages are plain Go structs carried as JSON by a Connect codec, so the
// services can be called with any HTTP client:
//
//	curl -H 'Content-Type: application/json' \
//	  -d '{"items":[{"amount":"10"}],"people":["Alice","Bob","Cara"]}' \
//	  http://localhost:8080/budgetai.v1.SplitService/Split
package api

import (
	"encoding/json"

	"github.com/parisedai/budgetai/internal/calculator"
	"github.com/parisedai/budgetai/internal/money"
)

// SplitRequest asks for an equal split of the items' total among people.
type SplitRequest struct {
	Items  []calculator.ItemInput `json:"items"`
	People []string               `json:"people"`
	// ReceiptID optionally records the split against an uploaded receipt.
	ReceiptID string `json:"receipt_id,omitempty"`
}

// SplitResponse maps each participant to their share, in participant order.
type SplitResponse struct {
	Split     calculator.Split `json:"split"`
	Total     money.Amount     `json:"total"`
	ReceiptID string           `json:"receipt_id,omitempty"`
}

// Receipt is the wire form of a stored receipt.
type Receipt struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	TotalAmount        money.Amount     `json:"total_amount"`
	RawText            string           `json:"raw_text"`
	SplitBetweenPeople calculator.Split `json:"split_between_people"`
	CreatedAt          string           `json:"created_at"`
}

type ListReceiptsRequest struct{}

type ListReceiptsResponse struct {
	Receipts []Receipt `json:"receipts"`
}

type GetReceiptRequest struct {
	ID string `json:"id"`
}

type GetReceiptResponse struct {
	Receipt Receipt `json:"receipt"`
}

// UploadResponse is returned by the multipart upload endpoint.
// TotalAmount is null when no total could be read from the receipt.
type UploadResponse struct {
	ID          string        `json:"id"`
	RawText     string        `json:"raw_text"`
	TotalAmount *money.Amount `json:"total_amount"`
}

// GenerateBudgetRequest carries the user's budget inputs. Income may be sent
// as a string or a number.
type GenerateBudgetRequest struct {
	Income        money.RawAmount `json:"income"`
	City          string          `json:"city"`
	FinancialGoal string          `json:"financialGoal"`
}

type UserInputs struct {
	Income        json.Number `json:"income"`
	City          string      `json:"city"`
	FinancialGoal string      `json:"financialGoal"`
}

type GenerateBudgetResponse struct {
	Success    bool       `json:"success"`
	BudgetPlan string     `json:"budgetPlan"`
	UserInputs UserInputs `json:"userInputs"`
	MockMode   bool       `json:"mockMode"`
}

// ErrorResponse is the body of plain HTTP error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}
