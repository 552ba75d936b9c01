package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/atomicfile"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/locator"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/pathutil"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// DefaultBillNo is written when a payment carries no bill number.
const DefaultBillNo = "BS"

// PersonalAccountUpdate is one entry in an employee's personal account.
type PersonalAccountUpdate struct {
	EmployeeName string `json:"employee_name"`
	AccountNo    string `json:"account_no"`
	Institution  string `json:"institution"`
	Date         string `json:"date"`
	Capital      Amount `json:"capital"`
	Interest     Amount `json:"interest"`
	Description  string `json:"description,omitempty"`
	BillNo       string `json:"bill_no,omitempty"`
	ChequeNo     string `json:"cheque_no,omitempty"`
}

// LimitCheck asks whether capital fits under the employee's current limit.
type LimitCheck struct {
	EmployeeName string `json:"employee_name"`
	AccountNo    string `json:"account_no"`
	Institution  string `json:"institution"`
	Capital      Amount `json:"capital"`
}

// LimitReport describes the row a limit was read from.
type LimitReport struct {
	FilePath string          `json:"file_path,omitempty"`
	Sheet    string          `json:"sheet,omitempty"`
	Row      int             `json:"row,omitempty"`
	Limit    decimal.Decimal `json:"limit"`
	Capital  decimal.Decimal `json:"capital"`
	Checked  bool            `json:"checked"`
}

// PersonalAccountFile resolves the workbook of an employee.
func (s *Service) PersonalAccountFile(institution, name, account string) (string, error) {
	if s.settings.PersonalAccountRoot == "" {
		return "", apperr.New(apperr.InvalidInput, "ledger.personal_file", "personal account root is not configured")
	}
	dir, err := pathutil.InstitutionDir(s.settings.PersonalAccountRoot, institution)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidInput, "ledger.personal_file", err)
	}
	return locator.FindPersonalAccountFile(dir, name, account)
}

// ValidateCapitalLimit reads column K of the row the next entry would be
// written to and fails with apperr.LimitExceeded if capital is above it. It
// opens the workbook read-only. Unset or non-positive capital is not checked.
func (s *Service) ValidateCapitalLimit(ctx context.Context, req LimitCheck) (LimitReport, error) {
	report := LimitReport{Capital: req.Capital.Decimal}
	if err := req.Capital.Check("ledger.limit_check", "capital"); err != nil {
		return report, err
	}
	if !req.Capital.Set() || !req.Capital.Decimal.IsPositive() {
		return report, nil
	}
	if err := required("ledger.limit_check",
		[2]string{"employee_name", req.EmployeeName},
		[2]string{"account_no", req.AccountNo},
		[2]string{"institution", req.Institution},
	); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	path, err := s.PersonalAccountFile(req.Institution, req.EmployeeName, req.AccountNo)
	if err != nil {
		return report, err
	}
	report.FilePath = path

	return atomicfile.View(path, func(doc workbook.Document) (LimitReport, error) {
		sheet, err := locator.AccountSheet(doc, req.AccountNo)
		if err != nil {
			return report, err
		}
		row, err := s.scanner.FindEmptyRun(sheet, 1, locator.PersonalAccountColumns, locator.PersonalAccountRunLength)
		if err != nil {
			return report, err
		}
		report.Sheet, report.Row, report.Checked = sheet.Name(), row, true
		report.Limit = capitalLimit(sheet, row)
		slog.Info("Checked capital limit", "path", path, "row", row, "limit", report.Limit, "capital", report.Capital)
		return report, checkLimit(report.Limit, report.Capital)
	})
}

// capitalLimit reads the ceiling in column K. Empty or non-numeric is zero.
func capitalLimit(sheet workbook.Sheet, row int) decimal.Decimal {
	c, err := sheet.Cell(row, workbook.ColK)
	if err != nil {
		return decimal.Zero
	}
	d, ok := c.Decimal()
	if !ok {
		return decimal.Zero
	}
	return d
}

func checkLimit(limit, capital decimal.Decimal) error {
	if capital.GreaterThan(limit) {
		return apperr.New(apperr.LimitExceeded, "ledger.limit_check",
			"capital limit reached: limit is %s, but attempted to pay %s", limit, capital)
	}
	return nil
}

// UpdatePersonalAccount writes a payment into the employee's personal
// account: A date, B bill number, C cheque number, E description,
// H interest, I capital.
func (s *Service) UpdatePersonalAccount(ctx context.Context, req PersonalAccountUpdate) Result {
	start := time.Now()
	return s.observe(OpPersonalAccount, start, s.updatePersonalAccount(ctx, req))
}

func (s *Service) updatePersonalAccount(ctx context.Context, req PersonalAccountUpdate) Result {
	if err := required("ledger.personal_account",
		[2]string{"employee_name", req.EmployeeName},
		[2]string{"account_no", req.AccountNo},
		[2]string{"institution", req.Institution},
		[2]string{"date", req.Date},
	); err != nil {
		return failed(err)
	}
	if err := checkAmounts("ledger.personal_account", req.Capital, req.Interest); err != nil {
		return failed(err)
	}

	if req.Capital.NonZero() {
		if _, err := s.ValidateCapitalLimit(ctx, LimitCheck{
			EmployeeName: req.EmployeeName,
			AccountNo:    req.AccountNo,
			Institution:  req.Institution,
			Capital:      req.Capital,
		}); err != nil {
			return failed(err)
		}
	}

	path, err := s.PersonalAccountFile(req.Institution, req.EmployeeName, req.AccountNo)
	if err != nil {
		return failed(err)
	}

	type written struct {
		row   int
		sheet string
	}
	w, err := atomicfile.Run(ctx, s.tx, path, func(doc workbook.Document) (written, error) {
		sheet, err := locator.AccountSheet(doc, req.AccountNo)
		if err != nil {
			return written{}, err
		}
		row, err := s.scanner.FindEmptyRun(sheet, 1, locator.PersonalAccountColumns, locator.PersonalAccountRunLength)
		if err != nil {
			return written{}, err
		}
		if req.Capital.NonZero() {
			// The file lock is held here, so this sees the same row as the pre-check.
			if err := checkLimit(capitalLimit(sheet, row), req.Capital.Decimal); err != nil {
				return written{}, err
			}
		}

		billNo := req.BillNo
		if billNo == "" {
			billNo = DefaultBillNo
		}
		writes := []cellWrite{
			{row, workbook.ColA, workbook.Text(req.Date)},
			{row, workbook.ColB, workbook.Text(billNo)},
			{row, workbook.ColC, workbook.Text(req.ChequeNo)},
			{row, workbook.ColE, workbook.Text(req.Description)},
		}
		if req.Interest.Set() {
			writes = append(writes, cellWrite{row, workbook.ColH, workbook.Decimal(req.Interest.Decimal)})
		}
		if req.Capital.Set() {
			writes = append(writes, cellWrite{row, workbook.ColI, workbook.Decimal(req.Capital.Decimal)})
		}
		if err := apply(sheet, writes); err != nil {
			return written{}, err
		}
		return written{row: row, sheet: sheet.Name()}, nil
	})
	if err != nil {
		return failed(err)
	}

	return Result{
		Success:    true,
		Message:    fmt.Sprintf("Successfully updated personal account for %s at row %d", req.EmployeeName, w.row),
		RowUpdated: w.row,
		FilePath:   path,
		Details:    map[string]any{"sheet": w.sheet},
	}
}
