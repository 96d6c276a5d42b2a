// Package handlers exposes the upload endpoint that feeds the processing
// pipeline and the job status endpoints that report on it.
package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-importer/internal/api/middleware"
	"github.com/dvloznov/statement-importer/internal/blob"
	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/jobs"
	"github.com/dvloznov/statement-importer/internal/storage/postgres"
)

// maxUploadSize caps statement PDFs at 25 MB.
const maxUploadSize = 25 << 20

// JobRepository is the job persistence surface the handlers need.
type JobRepository interface {
	Create(ctx context.Context, job *domain.UploadJob) error
	Get(ctx context.Context, id uuid.UUID) (*domain.UploadJob, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.UploadJob, error)
}

// UploadHandler accepts statement PDFs, stores the raw file, creates the
// PENDING job and schedules processing out-of-band.
type UploadHandler struct {
	jobs      JobRepository
	blobs     blob.Store
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewUploadHandler(jobRepo JobRepository, blobs blob.Store, publisher jobs.Publisher, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		jobs:      jobRepo,
		blobs:     blobs,
		publisher: publisher,
		log:       log,
	}
}

type jobResponse struct {
	JobID        uuid.UUID        `json:"job_id"`
	Status       domain.JobStatus `json:"status"`
	StatementID  *uuid.UUID       `json:"statement_id,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	RetryCount   int              `json:"retry_count"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

func toJobResponse(job *domain.UploadJob) jobResponse {
	return jobResponse{
		JobID:        job.ID,
		Status:       job.Status,
		StatementID:  job.StatementID,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// Upload handles POST /api/statements/upload. The multipart form carries the
// PDF under "file" plus a "card_id"; the authenticated user comes from the
// X-User-ID header set by the auth layer in front of this service.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing or invalid user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	cardID, err := uuid.Parse(r.FormValue("card_id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "card_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	objectName := fmt.Sprintf("statements/%s/%s/%s-%s",
		userID, time.Now().Format("2006/01/02"), uuid.NewString(), header.Filename)
	path, err := h.blobs.Save(ctx, objectName, bytes.NewReader(data))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to store uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	job := &domain.UploadJob{
		UserID:   userID,
		CardID:   cardID,
		FileHash: fileHash,
		FilePath: path,
		FileSize: int64(len(data)),
	}
	if err := h.jobs.Create(ctx, job); err != nil {
		var dup *postgres.DuplicateUploadError
		if errors.As(err, &dup) {
			middleware.WriteJSON(w, http.StatusConflict, map[string]any{
				"error":           "This file has already been uploaded",
				"existing_job_id": dup.ExistingJobID,
			})
			return
		}
		h.log.Error().Err(err).Msg("failed to create upload job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	task := &jobs.Task{JobID: job.ID, CardID: job.CardID, FilePath: job.FilePath}
	if err := h.publisher.Publish(ctx, task); err != nil {
		h.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to schedule job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Processing queue unavailable")
		return
	}

	h.log.Info().
		Str("job_id", job.ID.String()).
		Str("card_id", cardID.String()).
		Int64("file_size", job.FileSize).
		Msg("upload accepted")

	middleware.WriteJSON(w, http.StatusAccepted, toJobResponse(job))
}

// GetJob handles GET /api/jobs/{id}.
func (h *UploadHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil || job.UserID != userID {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /api/jobs.
func (h *UploadHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Missing or invalid user")
		return
	}

	list, err := h.jobs.ListByUser(r.Context(), userID, 50)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	out := make([]jobResponse, 0, len(list))
	for _, job := range list {
		out = append(out, toJobResponse(job))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  out,
		"count": len(out),
	})
}
