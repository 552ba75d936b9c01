// Package ledger writes payment entries into the cashbook, personal account,
// main ledger and trial balance workbooks.
package ledger

import (
	"bytes"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// Settings locates the workbooks the service writes to.
type Settings struct {
	CashbookPath  string
	CashbookSheet string

	MainLedgerPath       string
	LedgerDebitColumn    string
	LedgerInterestColumn string

	TrialBalancePath string
	CapitalSheet     string
	InterestSheet    string

	// PersonalAccountRoot holds one sub-directory per institution.
	PersonalAccountRoot string
}

// Operation names a single workbook mutation.
type Operation string

const (
	OpCashbook             Operation = "cashbook"
	OpBatchCashbook        Operation = "batch_cashbook"
	OpPersonalAccount      Operation = "personal_account"
	OpMainLedger           Operation = "main_ledger"
	OpCapitalTrialBalance  Operation = "capital_trial_balance"
	OpInterestTrialBalance Operation = "interest_trial_balance"
	OpCell                 Operation = "cell"
)

// Actions reported by accumulating mutators.
const (
	ActionSkipped         = "skipped"
	ActionUpdated         = "updated"
	ActionUpdatedExisting = "updated_existing"
	ActionCreatedNew      = "created_new"
)

// Result is the outcome of a mutation. Business failures are reported here
// rather than as Go errors.
type Result struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	Kind       apperr.Kind    `json:"kind,omitempty"`
	RowUpdated int            `json:"row_updated,omitempty"`
	Rows       []int          `json:"rows_updated,omitempty"`
	Action     string         `json:"action,omitempty"`
	FilePath   string         `json:"file_path,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Outcome is the metrics label for r.
func (r Result) Outcome() string {
	switch {
	case r.Success && r.Action == ActionSkipped:
		return ActionSkipped
	case r.Success:
		return "success"
	case r.Kind != "":
		return string(r.Kind)
	}
	return string(apperr.IOFailure)
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &apperr.Error{Kind: r.Kind, Msg: r.Error}
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error(), Kind: apperr.KindOf(err)}
}

// Amount is an optional money value. JSON null, "" and a missing field all
// leave it unset. Text that is not a number decodes to an unset Amount that
// remembers the input; Check reports it.
type Amount struct {
	decimal.NullDecimal
	invalid string
}

// AmountOf returns a set Amount.
func AmountOf(d decimal.Decimal) Amount {
	return Amount{NullDecimal: decimal.NullDecimal{Decimal: d, Valid: true}}
}

// ParseAmount parses s. The empty string yields an unset Amount.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, apperr.New(apperr.InvalidInput, "ledger.amount", "amount must be a valid number, got %q", s)
	}
	return AmountOf(d), nil
}

// MustAmount is ParseAmount for constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*a = Amount{}
		return nil
	}
	var n decimal.NullDecimal
	if err := n.UnmarshalJSON(b); err != nil {
		*a = Amount{invalid: string(bytes.Trim(b, `"`))}
		return nil
	}
	*a = Amount{NullDecimal: n}
	return nil
}

// Check fails when the decoded input was not a number.
func (a Amount) Check(op, field string) error {
	if a.invalid == "" {
		return nil
	}
	return apperr.New(apperr.InvalidInput, op, "%s must be a valid number, got %q", field, a.invalid)
}

func checkAmounts(op string, capital, interest Amount) error {
	if err := capital.Check(op, "capital"); err != nil {
		return err
	}
	return interest.Check(op, "interest")
}

// Set reports whether a value was supplied.
func (a Amount) Set() bool { return a.Valid }

// NonZero reports whether a value was supplied and differs from zero.
func (a Amount) NonZero() bool { return a.Valid && !a.Decimal.IsZero() }

func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return a.Decimal.String()
}

func required(op string, fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if f[1] == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return apperr.New(apperr.InvalidInput, op, "missing required fields: %v", missing)
	}
	return nil
}

var errNoAmount = errors.New("either capital or interest amount must be provided")

type cellWrite struct {
	row, col int
	cell     workbook.Cell
}

// apply writes each non-empty cell in order.
func apply(sheet workbook.Sheet, writes []cellWrite) error {
	for _, w := range writes {
		if w.cell.IsEmpty() {
			continue
		}
		if err := sheet.SetCell(w.row, w.col, w.cell); err != nil {
			return err
		}
	}
	return nil
}
