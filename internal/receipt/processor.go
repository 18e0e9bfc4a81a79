package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parisedai/budgetai/internal/money"
)

var (
	// ErrEmptyFile is returned when an upload carries no bytes.
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnsupportedFile is returned for uploads that are not an image or a PDF.
	ErrUnsupportedFile = errors.New("unsupported file type: upload a JPG, PNG, GIF or PDF")
)

// OCR extracts text from a receipt image or PDF.
type OCR interface {
	Recognize(ctx context.Context, filename string, data []byte) (string, error)
}

// SampleText is what PlaceholderOCR returns for every upload.
const SampleText = `WALMART
Store #1234
Date: 11/16/2024
Time: 14:30

Items:
1. Milk - $3.99
2. Bread - $2.49
3. Eggs - $4.99
4. Chicken - $8.99
5. Apples - $5.99

Subtotal: $26.45
Tax: $2.12
Total: $28.57`

// PlaceholderOCR stands in for a real OCR engine and always returns SampleText.
type PlaceholderOCR struct{}

// Recognize implements OCR.
func (PlaceholderOCR) Recognize(_ context.Context, _ string, _ []byte) (string, error) {
	return SampleText, nil
}

// Result is the outcome of processing one receipt.
type Result struct {
	RawText string
	Total   money.Amount
	// Found is false when no plausible total could be read from the text.
	Found bool
}

// Processor runs OCR and total extraction for uploaded receipts.
type Processor struct {
	ocr OCR
}

// NewProcessor creates a Processor backed by the given OCR engine.
func NewProcessor(ocr OCR) *Processor {
	return &Processor{ocr: ocr}
}

// Process extracts text from data and detects the receipt total.
func (p *Processor) Process(ctx context.Context, filename string, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrEmptyFile
	}
	if !supported(filename, data) {
		return Result{}, ErrUnsupportedFile
	}

	text, err := p.ocr.Recognize(ctx, filename, data)
	if err != nil {
		return Result{}, fmt.Errorf("error processing receipt: %w", err)
	}
	text = strings.TrimSpace(text)

	total, found := ExtractTotal(text)
	slog.Debug("Receipt processed",
		"filename", filename,
		"bytes", len(data),
		"total", total.String(),
		"found", found,
	)
	return Result{RawText: text, Total: total, Found: found}, nil
}

func supported(filename string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return true
	}
	ct := http.DetectContentType(data)
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}
