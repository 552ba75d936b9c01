package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/atomicfile"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// Main ledger layout: names in L, account numbers in R.
const (
	ledgerNameColumn    = workbook.ColL
	ledgerAccountColumn = workbook.ColR
	// sectionEndRun is the number of consecutive empty name cells that close
	// an institution section.
	sectionEndRun = 5
	// sectionTail is how far past the last row the employee search may go.
	sectionTail = 10
)

// MainLedgerUpdate accumulates a payment into the employee's main ledger row.
type MainLedgerUpdate struct {
	EmployeeName   string `json:"employee_name"`
	AccountNo      string `json:"account_no"`
	Institution    string `json:"institution"`
	Date           string `json:"date"`
	DebitColumn    string `json:"ledger_debit_column,omitempty"`
	InterestColumn string `json:"ledger_interest_column,omitempty"`
	Capital        Amount `json:"capital"`
	Interest       Amount `json:"interest"`
}

type ledgerMatch struct {
	institutionRow int
	employeeRow    int
	updates        []string
}

// UpdateMainLedger finds the institution in column L, then the employee row
// below it whose L matches the name and R the account number, and adds the
// amounts to the debit and interest columns.
func (s *Service) UpdateMainLedger(ctx context.Context, req MainLedgerUpdate) Result {
	start := time.Now()
	return s.observe(OpMainLedger, start, s.updateMainLedger(ctx, req))
}

func (s *Service) updateMainLedger(ctx context.Context, req MainLedgerUpdate) Result {
	if err := checkAmounts("ledger.main_ledger", req.Capital, req.Interest); err != nil {
		return failed(err)
	}
	if !req.Capital.NonZero() && !req.Interest.NonZero() {
		return Result{Success: true, Message: "No amounts to update", Action: ActionSkipped}
	}
	if err := required("ledger.main_ledger",
		[2]string{"employee_name", req.EmployeeName},
		[2]string{"account_no", req.AccountNo},
		[2]string{"institution", req.Institution},
	); err != nil {
		return failed(err)
	}

	debitLetter := firstNonEmpty(req.DebitColumn, s.settings.LedgerDebitColumn)
	interestLetter := firstNonEmpty(req.InterestColumn, s.settings.LedgerInterestColumn)
	if debitLetter == "" || interestLetter == "" {
		return failed(apperr.New(apperr.InvalidInput, "ledger.main_ledger", "ledger debit and interest columns must be set"))
	}
	debitCol, err := workbook.ColumnIndex(debitLetter)
	if err != nil {
		return failed(err)
	}
	interestCol, err := workbook.ColumnIndex(interestLetter)
	if err != nil {
		return failed(err)
	}
	if s.settings.MainLedgerPath == "" {
		return failed(apperr.New(apperr.InvalidInput, "ledger.main_ledger", "main ledger path is not configured"))
	}

	m, err := atomicfile.Run(ctx, s.tx, s.settings.MainLedgerPath, func(doc workbook.Document) (ledgerMatch, error) {
		sheet, err := doc.Sheet(0)
		if err != nil {
			return ledgerMatch{}, err
		}
		m, err := findLedgerRow(sheet, req.Institution, req.EmployeeName, req.AccountNo)
		if err != nil {
			return m, err
		}
		if req.Interest.NonZero() {
			u, err := accumulate(sheet, m.employeeRow, interestCol, req.Interest.Decimal)
			if err != nil {
				return m, err
			}
			m.updates = append(m.updates, "interest: "+u)
		}
		if req.Capital.NonZero() {
			u, err := accumulate(sheet, m.employeeRow, debitCol, req.Capital.Decimal)
			if err != nil {
				return m, err
			}
			m.updates = append(m.updates, "capital: "+u)
		}
		return m, nil
	})
	if err != nil {
		return failed(err)
	}
	return Result{
		Success:    true,
		Message:    fmt.Sprintf("Main ledger updated for %s", req.EmployeeName),
		Action:     ActionUpdated,
		RowUpdated: m.employeeRow,
		FilePath:   s.settings.MainLedgerPath,
		Details: map[string]any{
			"institution_row": m.institutionRow,
			"updates_made":    m.updates,
		},
	}
}

func findLedgerRow(sheet workbook.Sheet, institution, name, account string) (ledgerMatch, error) {
	fold := cases.Fold()
	key := func(s string) string { return fold.String(strings.TrimSpace(s)) }

	wantInst := key(institution)
	instRow := 0
	for row := 1; row <= sheet.MaxRow(); row++ {
		if v := workbook.CellText(sheet, row, ledgerNameColumn); v != "" && key(v) == wantInst {
			instRow = row
			break
		}
	}
	if instRow == 0 {
		return ledgerMatch{}, apperr.New(apperr.NotFound, "ledger.main_ledger",
			"institution %q not found in column L", institution)
	}
	slog.Debug("Found institution in main ledger", "institution", institution, "row", instRow)

	wantName, wantAcct := key(name), key(account)
	empty := 0
	for row := instRow + 1; row < sheet.MaxRow()+sectionTail; row++ {
		v := workbook.CellText(sheet, row, ledgerNameColumn)
		if v == "" {
			empty++
			if empty >= sectionEndRun {
				break
			}
			continue
		}
		empty = 0
		if key(v) == wantName && key(workbook.CellText(sheet, row, ledgerAccountColumn)) == wantAcct {
			return ledgerMatch{institutionRow: instRow, employeeRow: row}, nil
		}
	}
	return ledgerMatch{}, apperr.New(apperr.NotFound, "ledger.main_ledger",
		"employee %q with account %s not found under institution %q", name, account, institution)
}

// accumulate adds delta to the cell, treating empty or non-numeric content
// as zero.
func accumulate(sheet workbook.Sheet, row, col int, delta decimal.Decimal) (string, error) {
	c, err := sheet.Cell(row, col)
	if err != nil {
		return "", err
	}
	current, ok := c.Decimal()
	if !ok && !c.IsEmpty() {
		slog.Warn("Non-numeric value treated as zero", "sheet", sheet.Name(), "row", row, "column", workbook.ColumnName(col), "value", c.String())
	}
	total := current.Add(delta)
	if err := sheet.SetCell(row, col, workbook.Decimal(total)); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s + %s = %s", current, delta, total), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
