// Package domain holds the persisted model types shared across the import
// pipeline: upload jobs, card statements, transactions and credit cards.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrCardNotFound is returned when a referenced credit card does not exist.
// The atomic import treats it as fatal.
var ErrCardNotFound = errors.New("credit card not found")

// JobStatus is the lifecycle state of an upload job. COMPLETED, FAILED and
// PARTIAL are terminal; a job never re-enters PENDING.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobPartial    JobStatus = "PARTIAL"
)

// StatementStatus encodes the reconciliation outcome of an imported statement.
type StatementStatus string

const (
	StatementComplete      StatementStatus = "COMPLETE"
	StatementPendingReview StatementStatus = "PENDING_REVIEW"
)

// LimitSource records who last set a card's credit limit.
type LimitSource string

const (
	LimitSourceManual    LimitSource = "MANUAL"
	LimitSourceStatement LimitSource = "STATEMENT"
)

// UploadJob tracks one statement upload through the processing state machine.
// (user_id, file_hash) is unique and is the dedup boundary for re-uploads.
type UploadJob struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CardID       uuid.UUID
	Status       JobStatus
	FileHash     string
	FilePath     string
	FileSize     int64
	StatementID  *uuid.UUID
	ErrorMessage *string
	RetryCount   int
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	CompletedAt  *time.Time
}

// CardStatement is one imported statement period for a card. Period fields
// are nullable because partial imports may not recover them.
type CardStatement struct {
	ID              uuid.UUID
	CardID          uuid.UUID
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	CloseDate       *time.Time
	DueDate         *time.Time
	PreviousBalance *decimal.Decimal
	CurrentBalance  *decimal.Decimal
	MinimumPayment  *decimal.Decimal
	IsFullyPaid     bool
	Currency        string
	Status          StatementStatus
	SourceFilePath  string
	CreatedAt       time.Time
}

// Transaction is one persisted statement line. It is owned by the statement
// that created it and never reassigned.
type Transaction struct {
	ID             uuid.UUID
	StatementID    uuid.UUID
	TxnDate        time.Time
	Payee          string
	Description    string
	Amount         decimal.Decimal
	Currency       string
	Coupon         *string
	InstallmentCur *int
	InstallmentTot *int
}

// CreditCard carries the card fields the pipeline reads and mutates. The
// limit triple is shared state updated under the newest-statement-wins rule.
type CreditCard struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Name               string
	LastFour           string
	DefaultCurrency    string
	CreditLimit        *decimal.Decimal
	LimitSource        *LimitSource
	LimitLastUpdatedAt *time.Time
}
