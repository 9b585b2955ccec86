package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pmerrell/payrun/internal/database"
	"github.com/pmerrell/payrun/internal/models"
	"github.com/pmerrell/payrun/internal/processor"
)

// Pipeline accepts one document and starts its background processing.
type Pipeline interface {
	Accept(ctx context.Context, filename string, r io.Reader) (*models.Upload, error)
}

// PaymentsLister is the slice of the processor API the report needs.
type PaymentsLister interface {
	ListPayments(ctx context.Context, filter map[string]string) ([]processor.PaymentResponse, error)
}

type PayrollService struct {
	store          database.Store
	pipeline       Pipeline
	payments       PaymentsLister
	maxUploadBytes int64
	log            zerolog.Logger
}

func NewPayrollService(store database.Store, pipeline Pipeline, payments PaymentsLister, maxUploadBytes int64, log zerolog.Logger) *PayrollService {
	return &PayrollService{
		store:          store,
		pipeline:       pipeline,
		payments:       payments,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// UploadDocuments accepts multipart document fields. Each field gets its own
// Upload row; processing continues asynchronously after the response is sent,
// so downstream per-block failures are never reflected here.
func (h *PayrollService) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "Request must be multipart form data", http.StatusBadRequest)
		return
	}

	var uploads []models.Upload
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.log.Error().Err(err).Msg("failed to read next multipart field")
			break
		}

		filename := part.FileName()
		if filename == "" {
			filename = part.FormName()
		}

		upload, err := h.pipeline.Accept(r.Context(), filename, part)
		if err != nil {
			h.log.Error().Err(err).Str("filename", filename).Msg("failed to accept upload")
			http.Error(w, "Failed to accept upload", http.StatusInternalServerError)
			return
		}
		uploads = append(uploads, *upload)
	}

	h.writeJSON(w, uploads)
}

// GetTransactions returns the locally persisted transactions for one upload.
func (h *PayrollService) GetTransactions(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := h.uploadIDParam(w, r)
	if !ok {
		return
	}

	transactions, err := h.store.ListTransactionsByUpload(r.Context(), uploadID)
	if err != nil {
		h.log.Error().Err(err).Int64("upload_id", uploadID).Msg("failed to list transactions")
		http.Error(w, "Failed to retrieve transactions", http.StatusInternalServerError)
		return
	}

	if transactions == nil {
		transactions = []models.Transaction{}
	}
	h.writeJSON(w, transactions)
}

// GetReport reconciles local transactions against the processor's payment
// ledger for one upload.
func (h *PayrollService) GetReport(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := h.uploadIDParam(w, r)
	if !ok {
		return
	}

	report, err := h.buildReport(r.Context(), uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Upload not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Int64("upload_id", uploadID).Msg("failed to build report")
		http.Error(w, "Failed to build report", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, report)
}

// GetUploads returns every upload row.
func (h *PayrollService) GetUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.store.ListUploads(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list uploads")
		http.Error(w, "Failed to retrieve uploads", http.StatusInternalServerError)
		return
	}

	if uploads == nil {
		uploads = []models.Upload{}
	}
	h.writeJSON(w, uploads)
}

func (h *PayrollService) uploadIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("upload_id")
	if raw == "" {
		http.Error(w, "upload_id query parameter is required", http.StatusBadRequest)
		return 0, false
	}

	uploadID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "upload_id must be an integer", http.StatusBadRequest)
		return 0, false
	}

	return uploadID, true
}

func (h *PayrollService) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
