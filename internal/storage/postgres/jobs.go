package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-importer/internal/domain"
)

// uploadJobsDedupConstraint backs the (user_id, file_hash) idempotency
// boundary for uploads.
const uploadJobsDedupConstraint = "upload_jobs_user_id_file_hash_key"

// DuplicateUploadError is returned when a user re-uploads a file they have
// already submitted. It references the job that owns the file.
type DuplicateUploadError struct {
	ExistingJobID uuid.UUID
}

func (e *DuplicateUploadError) Error() string {
	return fmt.Sprintf("duplicate upload: file already submitted as job %s", e.ExistingJobID)
}

// JobFields are the optional columns UpdateStatus can set alongside the
// status. Nil fields are left untouched.
type JobFields struct {
	StatementID  *uuid.UUID
	ErrorMessage *string
	CompletedAt  *time.Time
	RetryCount   *int
}

// JobRepository persists upload jobs.
type JobRepository struct {
	db Querier
}

func NewJobRepository(db Querier) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, user_id, card_id, status, file_hash, file_path, file_size,
	statement_id, error_message, retry_count, created_at, updated_at, completed_at`

// Create inserts a new PENDING job. A (user_id, file_hash) collision returns
// a DuplicateUploadError carrying the existing job's id; no row is created.
func (r *JobRepository) Create(ctx context.Context, job *domain.UploadJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.JobPending
	}

	query := `
		INSERT INTO upload_jobs (id, user_id, card_id, status, file_hash, file_path, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		job.ID,
		job.UserID,
		job.CardID,
		job.Status,
		job.FileHash,
		job.FilePath,
		job.FileSize,
	).Scan(&job.CreatedAt)
	if err == nil {
		return nil
	}

	if !isUniqueViolation(err, uploadJobsDedupConstraint) {
		return fmt.Errorf("failed to create upload job: %w", err)
	}

	var existingID uuid.UUID
	lookupErr := r.db.QueryRow(ctx,
		`SELECT id FROM upload_jobs WHERE user_id = $1 AND file_hash = $2`,
		job.UserID, job.FileHash,
	).Scan(&existingID)
	if lookupErr != nil {
		return fmt.Errorf("failed to resolve duplicate upload job: %w", lookupErr)
	}
	return &DuplicateUploadError{ExistingJobID: existingID}
}

// Get retrieves a job by id.
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.UploadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM upload_jobs WHERE id = $1`

	job := &domain.UploadJob{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.UserID,
		&job.CardID,
		&job.Status,
		&job.FileHash,
		&job.FilePath,
		&job.FileSize,
		&job.StatementID,
		&job.ErrorMessage,
		&job.RetryCount,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get upload job: %w", err)
	}
	return job, nil
}

// ListByUser returns a user's jobs, newest first.
func (r *JobRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.UploadJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM upload_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload jobs: %w", err)
	}
	defer rows.Close()

	var result []*domain.UploadJob
	for rows.Next() {
		job := &domain.UploadJob{}
		err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.CardID,
			&job.Status,
			&job.FileHash,
			&job.FilePath,
			&job.FileSize,
			&job.StatementID,
			&job.ErrorMessage,
			&job.RetryCount,
			&job.CreatedAt,
			&job.UpdatedAt,
			&job.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload job: %w", err)
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// UpdateStatus moves a job to the given status and sets any non-nil fields.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, fields JobFields) error {
	set := []string{"status = $2", "updated_at = now()"}
	args := []any{id, status}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if fields.StatementID != nil {
		add("statement_id", *fields.StatementID)
	}
	if fields.ErrorMessage != nil {
		add("error_message", *fields.ErrorMessage)
	}
	if fields.CompletedAt != nil {
		add("completed_at", *fields.CompletedAt)
	}
	if fields.RetryCount != nil {
		add("retry_count", *fields.RetryCount)
	}

	query := fmt.Sprintf(`UPDATE upload_jobs SET %s WHERE id = $1`, strings.Join(set, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update upload job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upload job not found: %s", id)
	}
	return nil
}
