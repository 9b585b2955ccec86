// Package ingestion runs the upload pipeline: accepting a document creates an
// Upload row and enqueues a background job; workers parse and resolve the
// document and flip the row to its terminal status. The submitting call never
// waits for processing.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pmerrell/payrun/internal/database"
	"github.com/pmerrell/payrun/internal/models"
)

// DocumentParser is the parse-and-resolve pass executed per job.
type DocumentParser interface {
	Parse(ctx context.Context, r io.Reader, uploadID int64) []*models.Transaction
}

type Config struct {
	NumWorkers int
	QueueSize  int
}

type Service struct {
	store  database.Store
	parser DocumentParser
	config Config
	log    zerolog.Logger

	jobs   chan *models.DocumentJob
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewService(store database.Store, parser DocumentParser, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		store:  store,
		parser: parser,
		config: cfg,
		log:    log,
		jobs:   make(chan *models.DocumentJob, cfg.QueueSize),
	}
}

// Accept records the upload (status Init), buffers the document bytes, and
// enqueues them for background processing. It returns as soon as the job is
// queued; progress is observable only through the Upload row.
//
// If the bytes cannot be read the upload is marked Failed and returned with
// that status; the row exists either way.
func (s *Service) Accept(ctx context.Context, filename string, r io.Reader) (*models.Upload, error) {
	startedAt := time.Now().UTC()
	id, err := s.store.CreateUpload(ctx, filename, "", startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload record for %s: %w", filename, err)
	}

	upload := &models.Upload{
		ID:        id,
		Filename:  filename,
		Status:    models.UploadStatusInit,
		StartedAt: startedAt,
	}

	data, err := io.ReadAll(r)
	if err != nil {
		s.log.Error().Err(err).Int64("upload_id", id).Str("filename", filename).
			Msg("failed to read document bytes")
		if failErr := s.FailUpload(ctx, id); failErr != nil {
			s.log.Error().Err(failErr).Int64("upload_id", id).Msg("failed to mark upload failed")
		}
		upload.Status = models.UploadStatusFailed
		return upload, nil
	}

	checksum := fmt.Sprintf("%016x", xxhash.Sum64(data))
	upload.Checksum = checksum

	// Checked before recording our own checksum so the row does not match itself.
	seen, err := s.store.HasUploadWithChecksum(ctx, checksum)
	if err != nil {
		s.log.Error().Err(err).Str("filename", filename).Msg("checksum lookup failed")
	} else if seen {
		// Re-ingesting the same document is legal; repeated payments for the
		// same employees are valid domain events. Flag it for the operator.
		s.log.Warn().Str("filename", filename).Str("checksum", checksum).
			Msg("document with identical checksum was already ingested")
	}

	if err := s.store.SetUploadChecksum(ctx, id, checksum); err != nil {
		s.log.Error().Err(err).Int64("upload_id", id).Msg("failed to record upload checksum")
	}

	job := &models.DocumentJob{
		JobID:    uuid.NewString(),
		UploadID: id,
		Filename: filename,
		Data:     data,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("pipeline is shut down")
	}
	s.mu.Unlock()

	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.log.Info().Str("job_id", job.JobID).Int64("upload_id", id).Str("filename", filename).
		Msg("upload queued for processing")
	return upload, nil
}

// FailUpload marks an upload Failed. Used when the document bytes could not
// be acquired; per-block parse failures never reach this path.
func (s *Service) FailUpload(ctx context.Context, uploadID int64) error {
	return s.store.FinishUpload(ctx, uploadID, models.UploadStatusFailed, time.Now().UTC())
}
