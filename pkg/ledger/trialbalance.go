package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/atomicfile"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/locator"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// TrialBalanceUpdate adds a payment to the day's row of a trial balance sheet.
type TrialBalanceUpdate struct {
	EmployeeName string `json:"employee_name"`
	AccountNo    string `json:"account_no"`
	Institution  string `json:"institution"`
	Date         string `json:"date"`
	Capital      Amount `json:"capital"`
	Interest     Amount `json:"interest"`
}

type trialBalanceEntry struct {
	row    int
	action string
	total  string
}

// UpdateCapitalTrialBalance records the capital amount in the capital sheet.
func (s *Service) UpdateCapitalTrialBalance(ctx context.Context, req TrialBalanceUpdate) Result {
	start := time.Now()
	return s.observe(OpCapitalTrialBalance, start,
		s.updateTrialBalance(ctx, "capital", s.settings.CapitalSheet, req, req.Capital))
}

// UpdateInterestTrialBalance records the interest amount in the interest sheet.
func (s *Service) UpdateInterestTrialBalance(ctx context.Context, req TrialBalanceUpdate) Result {
	start := time.Now()
	return s.observe(OpInterestTrialBalance, start,
		s.updateTrialBalance(ctx, "interest", s.settings.InterestSheet, req, req.Interest))
}

// updateTrialBalance finds the first 5-row gap in column A. If the row just
// above it carries the same date, the amount is added to its column F;
// otherwise a new row is started with the date and amount.
func (s *Service) updateTrialBalance(ctx context.Context, kind, sheetName string, req TrialBalanceUpdate, amount Amount) Result {
	if err := amount.Check("ledger.trial_balance", kind); err != nil {
		return failed(err)
	}
	if !amount.NonZero() {
		return Result{Success: true, Message: fmt.Sprintf("No %s to update", kind), Action: ActionSkipped}
	}
	if err := required("ledger.trial_balance", [2]string{"date", req.Date}); err != nil {
		return failed(err)
	}
	if s.settings.TrialBalancePath == "" || sheetName == "" {
		return failed(apperr.New(apperr.InvalidInput, "ledger.trial_balance", "%s trial balance is not configured", kind))
	}
	date := strings.TrimSpace(req.Date)

	e, err := atomicfile.Run(ctx, s.tx, s.settings.TrialBalancePath, func(doc workbook.Document) (trialBalanceEntry, error) {
		sheet, err := doc.SheetByName(sheetName)
		if err != nil {
			return trialBalanceEntry{}, apperr.New(apperr.NotFound, "ledger.trial_balance",
				"%s worksheet %q not found in trial balance file", kind, sheetName)
		}
		row, err := s.scanner.FindEmptyRun(sheet, 1, locator.TrialBalanceColumns, locator.TrialBalanceRunLength)
		if err != nil {
			return trialBalanceEntry{}, err
		}
		if prev := row - 1; prev >= 1 && strings.TrimSpace(workbook.CellText(sheet, prev, workbook.ColA)) == date {
			total, err := accumulate(sheet, prev, workbook.ColF, amount.Decimal)
			if err != nil {
				return trialBalanceEntry{}, err
			}
			slog.Info("Updated existing trial balance entry", "kind", kind, "date", date, "row", prev, "total", total)
			return trialBalanceEntry{row: prev, action: ActionUpdatedExisting, total: total}, nil
		}
		err = apply(sheet, []cellWrite{
			{row, workbook.ColA, workbook.Text(date)},
			{row, workbook.ColF, workbook.Decimal(amount.Decimal)},
		})
		if err != nil {
			return trialBalanceEntry{}, err
		}
		slog.Info("Created trial balance entry", "kind", kind, "date", date, "row", row, "amount", amount)
		return trialBalanceEntry{row: row, action: ActionCreatedNew}, nil
	})
	if err != nil {
		return failed(err)
	}
	details := map[string]any{"amount": amount.Decimal.String()}
	if e.total != "" {
		details["total"] = e.total
	}
	return Result{
		Success:    true,
		Message:    fmt.Sprintf("%s trial balance updated for %s", strings.ToUpper(kind[:1])+kind[1:], req.EmployeeName),
		Action:     e.action,
		RowUpdated: e.row,
		FilePath:   s.settings.TrialBalancePath,
		Details:    details,
	}
}
