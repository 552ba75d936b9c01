// Package locator finds the rows, sheets and files that ledger entries are
// written to.
package locator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// DefaultHorizon is how many rows past the last used row a scan may look.
// It is also the upper bound for any Scanner.
const DefaultHorizon = 100

// Column sets and run lengths of the fixed layouts.
var (
	CashbookColumns        = workbook.ColumnRange(workbook.ColB, workbook.ColJ)
	PersonalAccountColumns = []int{workbook.ColA, workbook.ColH, workbook.ColI}
	TrialBalanceColumns    = []int{workbook.ColA}
)

const (
	CashbookRunLength        = 3
	PersonalAccountRunLength = 4
	TrialBalanceRunLength    = 5
)

// Scanner searches sheets for runs of empty rows.
type Scanner struct {
	// Horizon is the number of rows past max(MaxRow, start) that may be
	// inspected. Values above DefaultHorizon are clamped.
	Horizon int
}

// Default is the scanner used by the package-level functions.
var Default = Scanner{Horizon: DefaultHorizon}

func (s Scanner) limit(sheet workbook.Sheet, start int) int {
	h := s.Horizon
	if h > DefaultHorizon {
		h = DefaultHorizon
	}
	if h < 0 {
		h = 0
	}
	return max(sheet.MaxRow(), start) + h
}

// FindEmptyRun returns the first row of the first run of length consecutive
// rows at or after start that are empty across cols.
func (s Scanner) FindEmptyRun(sheet workbook.Sheet, start int, cols []int, length int) (int, error) {
	if start < 1 || length < 1 || len(cols) == 0 {
		return 0, apperr.New(apperr.InvalidInput, "locate.empty_run", "invalid scan start=%d length=%d columns=%d", start, length, len(cols))
	}
	limit := s.limit(sheet, start)
	first, count := 0, 0
	for row := start; row <= limit; row++ {
		empty, err := workbook.RowEmpty(sheet, row, cols)
		if err != nil {
			return 0, err
		}
		if !empty {
			count = 0
			continue
		}
		if count == 0 {
			first = row
		}
		count++
		if count == length {
			return first, nil
		}
	}
	return 0, apperr.New(apperr.NoCapacity, "locate.empty_run",
		"could not find %d consecutive empty rows in %q between rows %d and %d", length, sheet.Name(), start, limit)
}

// FindEmptyRun scans with the default horizon.
func FindEmptyRun(sheet workbook.Sheet, start int, cols []int, length int) (int, error) {
	return Default.FindEmptyRun(sheet, start, cols, length)
}

// ResolveEntryRow returns the cashbook row a single entry starts on. The
// hint is used when it is empty across B..J; otherwise the entry goes on the
// second row of the first 3-row run after it, leaving the row above free for
// the institution name.
func (s Scanner) ResolveEntryRow(sheet workbook.Sheet, hint int) (int, error) {
	if hint < 2 {
		return 0, apperr.New(apperr.InvalidInput, "locate.entry_row", "first entry row must be at least 2, got %d", hint)
	}
	empty, err := workbook.RowEmpty(sheet, hint, CashbookColumns)
	if err != nil {
		return 0, err
	}
	if empty {
		return hint, nil
	}
	slog.Info("First entry row is not empty, searching for free rows", "sheet", sheet.Name(), "row", hint)
	first, err := s.FindEmptyRun(sheet, hint, CashbookColumns, CashbookRunLength)
	if err != nil {
		return 0, err
	}
	return first + 1, nil
}

// ResolveEntryRow resolves with the default horizon.
func ResolveEntryRow(sheet workbook.Sheet, hint int) (int, error) {
	return Default.ResolveEntryRow(sheet, hint)
}

// MaxReportedRows caps the offending rows listed in a reservation failure.
const MaxReportedRows = 10

// BatchRows returns the rows a batch of count entries occupies.
func BatchRows(count int) int { return 3*count + 3 }

// ReserveBatchRows resolves the starting row for a batch of count entries
// and checks that every row of the block is empty across B..J.
func (s Scanner) ReserveBatchRows(sheet workbook.Sheet, hint, count int) (int, error) {
	if count < 1 {
		return 0, apperr.New(apperr.InvalidInput, "locate.batch", "batch must contain at least one entry")
	}
	start, err := s.ResolveEntryRow(sheet, hint)
	if err != nil {
		return 0, err
	}
	required := BatchRows(count)
	var occupied []int
	for row := start; row < start+required; row++ {
		empty, err := workbook.RowEmpty(sheet, row, CashbookColumns)
		if err != nil {
			return 0, err
		}
		if !empty {
			occupied = append(occupied, row)
		}
	}
	if len(occupied) == 0 {
		slog.Info("Reserved batch rows", "sheet", sheet.Name(), "start", start, "rows", required)
		return start, nil
	}

	shown := occupied
	if len(shown) > MaxReportedRows {
		shown = shown[:MaxReportedRows]
	}
	msg := fmt.Sprintf("insufficient empty rows for batch: %d consecutive empty rows required from row %d, found data in rows %v",
		required, start, shown)
	if extra := len(occupied) - len(shown); extra > 0 {
		msg += fmt.Sprintf(" and %d more rows", extra)
	}
	slog.Error("Batch reservation failed", "sheet", sheet.Name(), "start", start, "required", required, "occupied", len(occupied))
	return 0, &apperr.Error{Kind: apperr.InsufficientCapacity, Op: "locate.batch", Msg: msg}
}

// ReserveBatchRows reserves with the default horizon.
func ReserveBatchRows(sheet workbook.Sheet, hint, count int) (int, error) {
	return Default.ReserveBatchRows(sheet, hint, count)
}

// TagRow and TagColumn locate the account tag cell (J2).
const (
	TagRow    = 2
	TagColumn = workbook.ColJ
)

// FindSheetByAccountTag returns the last sheet whose account tag names
// account. Sheets that cannot be read or carry a malformed tag are skipped.
func FindSheetByAccountTag(doc workbook.Document, account string) (workbook.Sheet, error) {
	for i := doc.SheetCount() - 1; i >= 0; i-- {
		sheet, err := doc.Sheet(i)
		if err != nil {
			slog.Warn("Skipping unreadable sheet", "path", doc.Path(), "index", i, "error", err)
			continue
		}
		tag, err := sheet.Cell(TagRow, TagColumn)
		if err != nil {
			slog.Warn("Error reading account tag", "path", doc.Path(), "sheet", sheet.Name(), "error", err)
			continue
		}
		if tag.Kind != workbook.KindText {
			continue
		}
		parts := strings.Split(tag.Text, "/")
		if len(parts) < 3 {
			slog.Warn("Malformed account tag", "path", doc.Path(), "sheet", sheet.Name(), "tag", tag.Text)
			continue
		}
		if parts[2] == account {
			slog.Info("Found account sheet", "path", doc.Path(), "sheet", sheet.Name(), "account", account)
			return sheet, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "locate.account_sheet",
		"no sheet found with account number %s in cell J2 of %s", account, doc.Path())
}

// AccountSheet picks the sheet for account. Single-sheet legacy workbooks
// carry no tag and are returned as is.
func AccountSheet(doc workbook.Document, account string) (workbook.Sheet, error) {
	if doc.Format() == workbook.FormatLegacy && doc.SheetCount() == 1 {
		return doc.Sheet(0)
	}
	return FindSheetByAccountTag(doc, account)
}
