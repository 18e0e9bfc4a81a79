// Package models defines the persisted domain models for BudgetAI.
//
// # Models
//
//   - Receipt: an uploaded receipt with its OCR text and detected total
//   - Share: one participant's portion of a receipt once it has been split
//
// Participants are identified by display name strings; there are no user
// accounts.
//
// # Money
//
// Every amount is a money.Amount (integer cents). Amounts are never stored
// or compared as floating point values.
package models
