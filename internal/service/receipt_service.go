package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/parisedai/budgetai/internal/api"
	"github.com/parisedai/budgetai/internal/events"
	"github.com/parisedai/budgetai/internal/metrics"
	"github.com/parisedai/budgetai/internal/models"
	"github.com/parisedai/budgetai/internal/receipt"
	"github.com/parisedai/budgetai/internal/storage"
)

var _ api.ReceiptServiceHandler = (*ReceiptService)(nil)

// ReceiptService handles receipt uploads and lookups.
type ReceiptService struct {
	store          storage.Store
	processor      *receipt.Processor
	publisher      events.Publisher
	metrics        *metrics.Metrics
	maxUploadBytes int64
}

// NewReceiptService creates a ReceiptService. Uploads larger than
// maxUploadBytes are rejected.
func NewReceiptService(store storage.Store, processor *receipt.Processor, publisher events.Publisher, m *metrics.Metrics, maxUploadBytes int64) *ReceiptService {
	return &ReceiptService{
		store:          store,
		processor:      processor,
		publisher:      publisher,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
	}
}

// ListReceipts returns all stored receipts, newest first.
func (s *ReceiptService) ListReceipts(ctx context.Context, _ *connect.Request[api.ListReceiptsRequest]) (*connect.Response[api.ListReceiptsResponse], error) {
	receipts, err := s.store.ListReceipts(ctx)
	if err != nil {
		slog.Error("ListReceipts failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]api.Receipt, len(receipts))
	for i, r := range receipts {
		out[i] = toAPIReceipt(r)
	}
	return connect.NewResponse(&api.ListReceiptsResponse{Receipts: out}), nil
}

// GetReceipt returns one receipt by ID.
func (s *ReceiptService) GetReceipt(ctx context.Context, req *connect.Request[api.GetReceiptRequest]) (*connect.Response[api.GetReceiptResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id required"))
	}

	r, err := s.store.GetReceipt(ctx, req.Msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		slog.Error("GetReceipt failed", "receipt_id", req.Msg.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&api.GetReceiptResponse{Receipt: toAPIReceipt(r)}), nil
}

// UploadHandler accepts a multipart upload with the receipt in the "file"
// field, runs OCR and stores the result.
func (s *ReceiptService) UploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.metrics.ReceiptsProcessed.WithLabelValues("too_large").Inc()
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", s.maxUploadBytes))
				return
			}
			s.metrics.ReceiptsProcessed.WithLabelValues("no_file").Inc()
			writeError(w, http.StatusBadRequest, "No file provided")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			slog.Error("Failed to read upload", "filename", header.Filename, "error", err)
			writeError(w, http.StatusBadRequest, "Failed to read file")
			return
		}

		res, err := s.processor.Process(r.Context(), header.Filename, data)
		if err != nil {
			if errors.Is(err, receipt.ErrEmptyFile) || errors.Is(err, receipt.ErrUnsupportedFile) {
				s.metrics.ReceiptsProcessed.WithLabelValues("rejected").Inc()
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.metrics.ReceiptsProcessed.WithLabelValues("failed").Inc()
			slog.Error("Receipt processing failed", "filename", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to process receipt")
			return
		}

		rec := &models.Receipt{
			Title:   r.FormValue("title"),
			Total:   res.Total,
			RawText: res.RawText,
		}
		if err := s.store.CreateReceipt(r.Context(), rec); err != nil {
			s.metrics.ReceiptsProcessed.WithLabelValues("failed").Inc()
			slog.Error("Failed to store receipt", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to store receipt")
			return
		}

		outcome := "total_found"
		if !res.Found {
			outcome = "total_missing"
		}
		s.metrics.ReceiptsProcessed.WithLabelValues(outcome).Inc()
		slog.Info("Receipt uploaded", "receipt_id", rec.ID, "total", rec.Total.String(), "found", res.Found)

		events.PublishBestEffort(r.Context(), s.publisher, events.TopicReceiptUploaded, events.ReceiptUploaded{
			ReceiptID:  rec.ID,
			Total:      rec.Total,
			TotalFound: res.Found,
			UploadedAt: rec.CreatedAt,
		})

		resp := api.UploadResponse{ID: rec.ID, RawText: rec.RawText}
		if res.Found {
			total := res.Total
			resp.TotalAmount = &total
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func toAPIReceipt(r *models.Receipt) api.Receipt {
	return api.Receipt{
		ID:                 r.ID,
		Title:              r.Title,
		TotalAmount:        r.Total,
		RawText:            r.RawText,
		SplitBetweenPeople: toSplit(r.Split),
		CreatedAt:          time.Unix(r.CreatedAt, 0).UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
