package extraction

import (
	"cloud.google.com/go/civil"

	"github.com/dvloznov/statement-importer/internal/money"
)

// ExtractedStatement is the schema-validated output of a successful
// extraction. Balance fields are lists because some statements report one
// balance per currency.
type ExtractedStatement struct {
	StatementID     string                 `json:"statement_id"`
	Card            *ExtractedCard         `json:"card,omitempty"`
	Period          StatementPeriod        `json:"period"`
	PreviousBalance []money.Money          `json:"previous_balance"`
	CurrentBalance  []money.Money          `json:"current_balance"`
	MinimumPayment  []money.Money          `json:"minimum_payment"`
	CreditLimit     *money.Money           `json:"credit_limit"`
	Transactions    []ExtractedTransaction `json:"transactions"`
}

// ExtractedCard carries the optional card identification printed on the
// statement.
type ExtractedCard struct {
	LastFour   string `json:"last_four,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
}

// StatementPeriod is the billing cycle the statement covers.
type StatementPeriod struct {
	Start          civil.Date  `json:"start"`
	End            civil.Date  `json:"end"`
	DueDate        civil.Date  `json:"due_date"`
	NextCycleStart *civil.Date `json:"next_cycle_start,omitempty"`
}

// Installment marks a purchase paid in N installments (e.g. 3/12).
type Installment struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ExtractedTransaction is one statement line as extracted by the model.
type ExtractedTransaction struct {
	Date        civil.Date   `json:"date"`
	Merchant    string       `json:"merchant"`
	Amount      money.Money  `json:"amount"`
	Coupon      string       `json:"coupon,omitempty"`
	Installment *Installment `json:"installment,omitempty"`
}

// Result is the outcome of one pipeline attempt. Exactly one of Data and
// PartialData is set; ModelUsed always identifies which provider/pair
// produced the attempt, even for failures.
//
//   - Success: Data set, Err empty.
//   - Partial: PartialData set (output parsed as JSON but failed schema
//     validation), Err carries the validation message.
//   - Failure: only Err and ModelUsed.
type Result struct {
	Data        *ExtractedStatement
	PartialData map[string]any
	Err         string
	ModelUsed   string
}

// IsSuccess reports a clean, schema-valid extraction.
func (r Result) IsSuccess() bool {
	return r.Data != nil && r.Err == ""
}

// IsPartial reports a best-effort result usable by the partial import path.
func (r Result) IsPartial() bool {
	return r.PartialData != nil
}

func success(data *ExtractedStatement, modelUsed string) Result {
	return Result{Data: data, ModelUsed: modelUsed}
}

func partial(data map[string]any, errMsg, modelUsed string) Result {
	return Result{PartialData: data, Err: errMsg, ModelUsed: modelUsed}
}

func failure(errMsg, modelUsed string) Result {
	return Result{Err: errMsg, ModelUsed: modelUsed}
}
