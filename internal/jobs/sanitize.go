package jobs

import (
	"errors"

	"github.com/dvloznov/statement-importer/internal/currency"
	"github.com/dvloznov/statement-importer/internal/domain"
)

// User-facing failure categories. Raw error text, model identifiers and
// provider payloads never reach the stored error_message; they live in the
// operational log only.
const (
	msgCorruptDocument = "the document appears corrupted or in an unsupported format"
	msgCurrencyIssue   = "a currency conversion issue occurred"
	msgCardMissing     = "the credit card for this upload could not be found"
	msgUnexpected      = "an unexpected error occurred"
)

// sanitizeError maps an internal error to its user-facing category.
func sanitizeError(err error) string {
	var convErr *currency.ConversionError
	switch {
	case errors.As(err, &convErr):
		return msgCurrencyIssue
	case errors.Is(err, domain.ErrCardNotFound):
		return msgCardMissing
	default:
		return msgUnexpected
	}
}
