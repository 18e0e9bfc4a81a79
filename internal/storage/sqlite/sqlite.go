// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/parisedai/budgetai/internal/models"
	"github.com/parisedai/budgetai/internal/money"
	"github.com/parisedai/budgetai/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Foreign keys are per-connection in SQLite; keep a single connection so the pragma sticks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateReceipt persists a new receipt, along with its split if one is set.
func (s *SQLiteStore) CreateReceipt(ctx context.Context, receipt *models.Receipt) error {
	// Generate fields if not set
	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}
	if receipt.CreatedAt == 0 {
		receipt.CreatedAt = time.Now().Unix()
	}
	if receipt.Title == "" {
		receipt.Title = generateTitle(time.Unix(receipt.CreatedAt, 0))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO receipts (id, title, total_cents, raw_text, created_at) VALUES (?, ?, ?, ?, ?)",
		receipt.ID, receipt.Title, int64(receipt.Total), receipt.RawText, receipt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	if err := insertShares(ctx, tx, receipt.ID, receipt.Split); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetReceipt retrieves a receipt by ID, including its split.
func (s *SQLiteStore) GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, total_cents, raw_text, created_at FROM receipts WHERE id = ?",
		receiptID,
	).Scan(&receipt.ID, &receipt.Title, &total, &receipt.RawText, &receipt.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	receipt.Total = money.Amount(total)

	receipt.Split, err = s.getShares(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts, newest first.
func (s *SQLiteStore) ListReceipts(ctx context.Context) ([]*models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, total_cents, raw_text, created_at FROM receipts ORDER BY created_at DESC, rowid DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		r := &models.Receipt{}
		var total int64
		if err := rows.Scan(&r.ID, &r.Title, &total, &r.RawText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		r.Total = money.Amount(total)
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	// Rows must be closed before issuing more queries on the single connection.
	rows.Close()

	for _, r := range receipts {
		if r.Split, err = s.getShares(ctx, r.ID); err != nil {
			return nil, err
		}
	}
	return receipts, nil
}

// UpdateReceiptSplit replaces the split stored for a receipt.
func (s *SQLiteStore) UpdateReceiptSplit(ctx context.Context, receiptID string, split []models.Share) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM receipts WHERE id = ?", receiptID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("receipt %s: %w", receiptID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check receipt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM receipt_shares WHERE receipt_id = ?", receiptID); err != nil {
		return fmt.Errorf("failed to delete shares: %w", err)
	}
	if err := insertShares(ctx, tx, receiptID, split); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertShares(ctx context.Context, tx *sql.Tx, receiptID string, split []models.Share) error {
	for i, share := range split {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO receipt_shares (receipt_id, position, participant, amount_cents) VALUES (?, ?, ?, ?)",
			receiptID, i, share.Participant, int64(share.Amount),
		)
		if err != nil {
			return fmt.Errorf("failed to insert share: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) getShares(ctx context.Context, receiptID string) ([]models.Share, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT participant, amount_cents FROM receipt_shares WHERE receipt_id = ? ORDER BY position",
		receiptID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get shares: %w", err)
	}
	defer rows.Close()

	var shares []models.Share
	for rows.Next() {
		var share models.Share
		var amount int64
		if err := rows.Scan(&share.Participant, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		share.Amount = money.Amount(amount)
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return shares, nil
}

// generateTitle creates an auto-generated title from the upload time.
func generateTitle(uploaded time.Time) string {
	return fmt.Sprintf("Receipt - %s", uploaded.Format("Jan 2, 2006"))
}
