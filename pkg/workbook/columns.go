package workbook

import (
	"fmt"
	"strings"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/xuri/excelize/v2"
)

// Fixed column positions used by the ledger layouts.
const (
	ColA = 1
	ColB = 2
	ColC = 3
	ColD = 4
	ColE = 5
	ColF = 6
	ColG = 7
	ColH = 8
	ColI = 9
	ColJ = 10
	ColK = 11
	ColL = 12
	ColM = 13
	ColR = 18
)

// ColumnIndex converts a column letter (A, Z, AA, ...) to its 1-based index.
func ColumnIndex(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, apperr.New(apperr.InvalidInput, "workbook.column", "column letter is empty")
	}
	n, err := excelize.ColumnNameToNumber(letters)
	if err != nil {
		return 0, &apperr.Error{Kind: apperr.InvalidInput, Op: "workbook.column", Msg: fmt.Sprintf("invalid column %q", letters), Err: err}
	}
	return n, nil
}

// ColumnName converts a 1-based column index to its letter form.
func ColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return fmt.Sprintf("#%d", col)
	}
	return name
}

// ColumnRange returns the indexes first..last inclusive.
func ColumnRange(first, last int) []int {
	cols := make([]int, 0, last-first+1)
	for c := first; c <= last; c++ {
		cols = append(cols, c)
	}
	return cols
}

// CellRef parses an A1-style reference into row and column.
func CellRef(ref string) (row, col int, err error) {
	col, row, err = excelize.CellNameToCoordinates(strings.ToUpper(strings.TrimSpace(ref)))
	if err != nil {
		return 0, 0, &apperr.Error{Kind: apperr.InvalidInput, Op: "workbook.cell_ref", Msg: fmt.Sprintf("invalid cell reference %q", ref), Err: err}
	}
	return row, col, nil
}
