package ingestion

import (
	"bytes"
	"context"
	"time"

	"github.com/pmerrell/payrun/internal/models"
)

// Start launches the pipeline workers. Each worker drains the job queue and
// runs the full parse-and-resolve pass per job; uploads running concurrently
// are not coordinated with each other.
func (s *Service) Start(ctx context.Context) {
	for i := 1; i <= s.config.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	s.log.Info().Int("workers", s.config.NumWorkers).Msg("pipeline workers started")
}

// Stop closes the queue and waits for in-flight jobs to finish, or until ctx
// expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for job := range s.jobs {
		s.process(ctx, workerID, job)
	}
}

// process runs one job to completion. The upload ends Finished once the
// parser has drained the stream, no matter how many transaction blocks were
// skipped along the way.
func (s *Service) process(ctx context.Context, workerID int, job *models.DocumentJob) {
	s.log.Info().Int("worker", workerID).Str("job_id", job.JobID).Int64("upload_id", job.UploadID).
		Str("filename", job.Filename).Msg("processing upload")

	transactions := s.parser.Parse(ctx, bytes.NewReader(job.Data), job.UploadID)

	if err := s.store.FinishUpload(ctx, job.UploadID, models.UploadStatusFinished, time.Now().UTC()); err != nil {
		s.log.Error().Err(err).Int64("upload_id", job.UploadID).Msg("failed to mark upload finished")
		return
	}

	s.log.Info().Int("worker", workerID).Int64("upload_id", job.UploadID).
		Int("transactions", len(transactions)).Msg("upload finished")
}
